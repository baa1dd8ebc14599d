package utils

import (
	"fmt"

	"lootledger/domain/entities"
)

// ValidateMetadata checks the types of the metadata keys the ledger understands.
// Unknown keys pass through, but must still be JSON-safe scalars, slices or maps.
func ValidateMetadata(metadata map[string]any) error {
	for key, value := range metadata {
		switch key {
		case entities.MetaInitiatedBy:
			if !isInteger(value) && !isString(value) && value != nil {
				return entities.NewValidationError("metadata."+key, "must be a user id")
			}
		case entities.MetaReason, entities.MetaSpinReference, entities.MetaOrderReference,
			entities.MetaTransferType, entities.MetaFromBucket, entities.MetaToBucket, entities.MetaPaymentMethod:
			if !isString(value) {
				return entities.NewValidationError("metadata."+key, "must be a string")
			}
		case entities.MetaIsManualTopup, entities.MetaIsManualDebit, entities.MetaIsManualTransfer:
			if _, ok := value.(bool); !ok {
				return entities.NewValidationError("metadata."+key, "must be a boolean")
			}
		case entities.MetaBoxID, entities.MetaCounterpartyID:
			if !isInteger(value) {
				return entities.NewValidationError("metadata."+key, "must be an integer")
			}
		default:
			if err := checkJSONSafe(value, 0); err != nil {
				return entities.NewValidationError("metadata."+key, err.Error())
			}
		}
	}
	return nil
}

// MergeMetadata returns a new map holding base overlaid with extra
func MergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		// JSON numbers decode as float64
		return n == float64(int64(n))
	}
	return false
}

func checkJSONSafe(v any, depth int) error {
	if depth > 4 {
		return fmt.Errorf("nested too deeply")
	}
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, float64:
		return nil
	case []any:
		for _, item := range t {
			if err := checkJSONSafe(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, item := range t {
			if err := checkJSONSafe(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}
