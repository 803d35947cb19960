package httpbridge

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
	"github.com/louisbranch/questbridge/internal/transport"
)

// Handler serves the bridge delivery endpoint for one relay.
//
// transportID is the identity this server presents to the relay as caller;
// the relay only accepts deliveries from its configured transport.
func Handler(transportID domain.Address, receiver transport.Receiver) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(DeliverPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var env envelope
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&env); err != nil {
			writeError(w, http.StatusBadRequest, string(perrors.CodePayloadMalformed), "request body is not a valid envelope")
			return
		}

		err := receiver.Receive(r.Context(), transportID, env.SourceDomainID, env.Source, env.Payload)
		if err != nil {
			var domainErr *perrors.Error
			if errors.As(err, &domainErr) {
				writeError(w, domainErr.HTTPStatus(), string(domainErr.Code), domainErr.Message)
				return
			}
			log.Printf("bridge delivery failed: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "delivery failed")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: message})
}
