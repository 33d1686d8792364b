package handler

import (
	"net/http"
	"sync"

	"qr-code-tracker/model"
	"qr-code-tracker/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchRecord handles GET /api/records/{id}/watch — a websocket pushing
// every record update. In remote mode updates stream live from the store
// subscription; in local mode the client receives a single snapshot frame
// and must not expect more.
func (h *RecordHandler) WatchRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := h.opCtx(r)
	rec, err := h.store.Get(ctx, id)
	cancel()
	if err == utils.ErrNotFound {
		SendJSONError(w, http.StatusNotFound, err, "")
		return
	} else if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to fetch record for watch")
		SendJSONError(w, statusForError(err), err, "Failed to fetch record")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(rec model.Record) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(rec); err != nil {
			log.Debug().Err(err).Str("id", id).Msg("Watch write failed")
		}
	}

	// Initial snapshot, then subscribe for updates.
	send(*rec)

	unsubscribe, err := h.store.Watch(r.Context(), id, send)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to subscribe for record updates")
		return
	}
	defer unsubscribe()

	log.Info().Str("id", id).Msg("Watch session started")

	// Block until the client disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	log.Debug().Str("id", id).Msg("Watch session closed")
}
