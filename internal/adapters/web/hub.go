package web

import (
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/linkd/internal/core/domain"
	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin and local front-ends only.
		return r.Header.Get("Origin") == "" || r.Host == r.Header.Get("X-Forwarded-Host") ||
			r.Header.Get("Origin") == "http://"+r.Host
	},
}

// WSMessage is the envelope of every frame on the event channel.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type statusPayload struct {
	Device domain.DeviceView `json:"device"`
	Stage  string            `json:"stage,omitempty"`
	IP4    string            `json:"ip4,omitempty"`
}

type networkPayload struct {
	Device string        `json:"device"`
	AP     domain.APView `json:"ap"`
}

type keyRequestPayload struct {
	Device  string `json:"device"`
	ESSID   string `json:"essid"`
	Attempt int    `json:"attempt"`
}

type keyReply struct {
	Device  string `json:"device"`
	Key     string `json:"key"`
	KeyType int    `json:"key_type"`
}

// Hub broadcasts host-bus events to connected front-ends and relays key
// prompt replies back into the activation engine. It implements both
// ports.EventSink and ports.KeyPrompt.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	service ports.LinkService
}

// NewHub creates an empty hub; the service is attached once the facade is
// built.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Attach wires the control service for key replies.
func (h *Hub) Attach(service ports.LinkService) {
	h.mu.Lock()
	h.service = service
	h.mu.Unlock()
}

// HandleWebSocket upgrades a front-end connection and pumps its replies.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var reply keyReply
		if err := conn.ReadJSON(&reply); err != nil {
			return
		}
		h.mu.Lock()
		service := h.service
		h.mu.Unlock()
		if service != nil && reply.Device != "" {
			service.DeliverKey(reply.Device, reply.Key, domain.KeyType(reply.KeyType))
		}
	}
}

func (h *Hub) broadcast(msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// DeviceStatusChanged publishes an activation stage transition.
func (h *Hub) DeviceStatusChanged(dev *domain.Device, stage ports.ActivationStage) {
	h.broadcast(WSMessage{Type: "device_status", Payload: statusPayload{
		Device: dev.View(), Stage: string(stage),
	}})
}

// DeviceIP4AddressChanged publishes a fresh address.
func (h *Hub) DeviceIP4AddressChanged(dev *domain.Device, addr net.IP) {
	h.broadcast(WSMessage{Type: "device_ip4", Payload: statusPayload{
		Device: dev.View(), IP4: addr.String(),
	}})
}

// WirelessNetworkAppeared publishes a new visible network.
func (h *Hub) WirelessNetworkAppeared(dev *domain.Device, ap *domain.AccessPoint) {
	h.broadcast(WSMessage{Type: "network_appeared", Payload: networkPayload{
		Device: dev.UDI, AP: ap.View(),
	}})
}

// WirelessNetworkDisappeared publishes a vanished network.
func (h *Hub) WirelessNetworkDisappeared(dev *domain.Device, ap *domain.AccessPoint) {
	h.broadcast(WSMessage{Type: "network_disappeared", Payload: networkPayload{
		Device: dev.UDI, AP: ap.View(),
	}})
}

// RequestKey asks connected front-ends for a pre-shared key. The reply
// comes back through the read loop as a keyReply frame.
func (h *Hub) RequestKey(dev *domain.Device, essid string, attempt int) {
	h.broadcast(WSMessage{Type: "key_request", Payload: keyRequestPayload{
		Device: dev.UDI, ESSID: essid, Attempt: attempt,
	}})
}
