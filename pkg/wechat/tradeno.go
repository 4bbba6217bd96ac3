package wechat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOutTradeNo produces the merchant trade reference used as the
// idempotency key toward the gateway: ORDER_<unix-seconds>_<8 hex chars>.
func GenerateOutTradeNo() string {
	entropy := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORDER_%d_%s", time.Now().Unix(), entropy)
}
