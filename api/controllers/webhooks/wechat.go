package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/kamishop/kamishop-backend/internal/settlement"
	"github.com/kamishop/kamishop-backend/pkg/logger"
)

// wechatAck is the acknowledgment body the WeChat Pay notify dispatcher
// expects. Anything other than SUCCESS with a 2xx status makes the gateway
// retry the push.
type wechatAck struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// WeChatNotify receives payment push callbacks. Signature verification and
// settlement happen inside the settlement service; this handler only
// translates the outcome into the gateway's ack format.
func WeChatNotify(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			writeAck(w, http.StatusServiceUnavailable, wechatAck{Code: "FAIL", Message: "settlement unavailable"})
			return
		}

		if _, err := svc.HandleCallback(ctx, r); err != nil {
			if logg != nil {
				logg.Error(ctx, "payment callback rejected", err)
			}
			writeAck(w, http.StatusInternalServerError, wechatAck{Code: "FAIL", Message: "settlement failed"})
			return
		}

		writeAck(w, http.StatusOK, wechatAck{Code: "SUCCESS"})
	}
}

func writeAck(w http.ResponseWriter, status int, ack wechatAck) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ack)
}
