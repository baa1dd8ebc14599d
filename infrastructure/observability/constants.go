package observability

const namespace = "lootledger"

// Instrument names, grouped by the component that records them
const (
	BalanceTransactionsTotal = namespace + ".balance.transactions_total"
	ConflictRetriesTotal     = namespace + ".ledger.conflict_retries_total"

	WagersTotal   = namespace + ".wagers.total"
	WagerDuration = namespace + ".wagers.duration"
	ResellsTotal  = namespace + ".wagers.resells_total"

	VerifyRequests = namespace + ".audit.verifications_total"

	NATSMessagesPublishedTotal = namespace + ".nats.messages_published_total"

	DatabaseQueriesTotal  = namespace + ".database.queries_total"
	DatabaseQueryDuration = namespace + ".database.query_duration"
)

// Attribute keys
const (
	LabelCategory   = "category"
	LabelDirection  = "direction"
	LabelResult     = "result"
	LabelOperation  = "operation"
	LabelEventType  = "event_type"
	LabelRepository = "repository"
	LabelMethod     = "method"
)
