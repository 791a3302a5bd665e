package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PendingIDPrefix marks ids minted on the device. Server ids never carry it.
const PendingIDPrefix = "pending_"

// NewPendingID returns pending_<unix-millis>_<8 random hex chars>. No
// uniqueness check is made against existing ids.
func NewPendingID(now time.Time) string {
	return fmt.Sprintf("%s%d_%s", PendingIDPrefix, now.UnixMilli(), uuid.NewString()[:8])
}

// IsPendingID reports whether id was minted by NewPendingID.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, PendingIDPrefix)
}
