// Package realtime pushes collection changes to socket.io clients. A client
// joins the room named after a collection and receives a
// "collection-changed" event for every committed mutation of it.
package realtime

import (
	"net/http"

	"campus-store/collections"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const (
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventCollectionChanged = "collection-changed"

	maxHttpBufferSize = 1 << 20
)

type Hub struct {
	io *socketio.Server
}

func NewHub() *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(maxHttpBufferSize)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	h := &Hub{io: socketio.NewServer(nil, opts)}
	h.io.On("connection", h.onConnection)
	return h
}

// Handler serves the socket.io endpoint.
func (h *Hub) Handler() http.Handler {
	return h.io.ServeHandler(nil)
}

// Notify broadcasts e to the room of its collection.
func (h *Hub) Notify(e collections.Event) {
	h.io.To(socketio.Room(e.Collection)).Emit(EventCollectionChanged, e)
}

func (h *Hub) Close() {
	h.io.Close(nil)
}

func (h *Hub) onConnection(clients ...any) {
	socket := clients[0].(*socketio.Socket)
	log := logrus.WithField("socket", socket.Id())

	socket.On(EventJoinRoom, func(datas ...any) {
		if name, ok := roomName(datas); ok {
			socket.Join(socketio.Room(name))
			log.WithField("room", name).Debug("Socket joined room")
		}
	})
	socket.On(EventLeaveRoom, func(datas ...any) {
		if name, ok := roomName(datas); ok {
			socket.Leave(socketio.Room(name))
		}
	})
	socket.On("disconnect", func(...any) {
		log.Debug("Socket disconnected")
		socket.RemoveAllListeners("")
	})
}

func roomName(datas []any) (string, bool) {
	if len(datas) == 0 {
		return "", false
	}
	name, ok := datas[0].(string)
	if !ok || collections.ValidateName(name) != nil {
		return "", false
	}
	return name, true
}
