package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReferenceID returns a unique transaction reference of the form TXN_<unix-ms>_<random>
func NewReferenceID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("TXN_%d_%s", now.UnixMilli(), strings.ToUpper(random))
}
