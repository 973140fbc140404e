package inngest

import (
	"net/http"

	"github.com/mauv0809/scoreline/internal/pubsub"
)

type InngestClient interface {
	Serve() http.Handler
	SendMessage(topic pubsub.EventType, data any) error
}
