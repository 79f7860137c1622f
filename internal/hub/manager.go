package hub

import (
	"Parley/internal/event"
	"Parley/internal/reactive"
	"Parley/internal/service"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Services bundles the domain services the hub dispatches commands to.
type Services struct {
	Users         service.UserService
	Conversations service.ConversationService
	Messages      service.MessageService
	Presence      service.PresenceService
	Typing        service.TypingService
}

// Hub is the client session manager: it owns every connected session,
// routes inbound subscribe/unsubscribe/mutate events, and tears sessions
// down together with their live subscriptions.
type Hub struct {
	engine   *reactive.Engine
	services Services

	sessions map[string]*Client
	mu       sync.RWMutex

	register       chan *Client
	unregister     chan *Client
	inbound        chan inboundMessage
	allowedOrigins map[string]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(engine *reactive.Engine, services Services, allowedOrigins []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		engine:         engine,
		services:       services,
		sessions:       make(map[string]*Client),
		register:       make(chan *Client, 1024),
		unregister:     make(chan *Client, 1024),
		inbound:        make(chan inboundMessage, 4096), // buffer for burst handling
		allowedOrigins: make(map[string]struct{}, len(allowedOrigins)),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, origin := range allowedOrigins {
		h.allowedOrigins[origin] = struct{}{}
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.sessions[c.ID] = c
	h.mu.Unlock()

	// Session start doubles as a presence signal.
	if err := h.services.Presence.SetOnline(context.Background(), c.userID, true); err != nil {
		log.Printf("presence online failed for user %s: %v", c.userID, err)
	}
	log.Printf("client %s registered (user %s)", c.ID, c.userID)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	_, known := h.sessions[c.ID]
	delete(h.sessions, c.ID)
	h.mu.Unlock()
	if !known {
		return
	}

	// Teardown implicitly releases every live query the session owned.
	for _, id := range c.TakeSubscriptions() {
		h.engine.Unsubscribe(id)
	}

	// Best-effort offline signal; the client may have vanished without one.
	if err := h.services.Presence.SetOnline(context.Background(), c.userID, false); err != nil {
		log.Printf("presence offline failed for user %s: %v", c.userID, err)
	}

	c.Close()
	log.Printf("client %s removed (user %s)", c.ID, c.userID)
}

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventSubscribe:
		h.handleSubscribe(ev, c)
	case event.EventUnsubscribe:
		h.handleUnsubscribe(ev, c)
	case event.EventMutate:
		h.handleMutate(ev, c)
	default:
		log.Printf("unknown event type: %s", ev.Event)
		h.sendError(c, ev.RequestID, event.CodeValidation, "unknown event type")
	}
}

func (h *Hub) handleSubscribe(ev event.WsEvent, c *Client) {
	var req event.SubscribeRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		h.sendError(c, ev.RequestID, event.CodeValidation, "malformed subscribe request")
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	id, initial, err := h.engine.Subscribe(ctx, req.Query, c)
	if err != nil {
		h.sendError(c, ev.RequestID, errorCode(err), err.Error())
		return
	}
	c.AddSubscription(id)

	c.SafeSend(event.WsEvent{
		Event:          event.EventSubscribed,
		RequestID:      ev.RequestID,
		SubscriptionID: id,
		Payload:        initial,
	}, sendTimeout)
}

func (h *Hub) handleUnsubscribe(ev event.WsEvent, c *Client) {
	var req event.UnsubscribeRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		h.sendError(c, ev.RequestID, event.CodeValidation, "malformed unsubscribe request")
		return
	}

	// Sessions may only release their own subscriptions.
	if !c.RemoveSubscription(req.SubscriptionID) {
		h.sendError(c, ev.RequestID, event.CodeNotFound, "unknown subscription")
		return
	}
	h.engine.Unsubscribe(req.SubscriptionID)

	c.SafeSend(event.WsEvent{
		Event:          event.EventUnsubscribed,
		RequestID:      ev.RequestID,
		SubscriptionID: req.SubscriptionID,
	}, sendTimeout)
}

func (h *Hub) handleMutate(ev event.WsEvent, c *Client) {
	var req event.MutateRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		h.sendError(c, ev.RequestID, event.CodeValidation, "malformed mutate request")
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	result, err := h.dispatchCommand(ctx, req.Command)
	if err != nil {
		h.sendError(c, ev.RequestID, errorCode(err), err.Error())
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		h.sendError(c, ev.RequestID, event.CodeInternal, "failed to encode result")
		return
	}

	c.SafeSend(event.WsEvent{
		Event:     event.EventMutated,
		RequestID: ev.RequestID,
		Payload:   payload,
	}, sendTimeout)
}

func (h *Hub) dispatchCommand(ctx context.Context, cmd event.Command) (any, error) {
	switch cmd.Kind {
	case event.CommandSyncUser:
		return h.services.Users.Sync(ctx, cmd.UserID, cmd.Name, cmd.Email, cmd.AvatarURL)
	case event.CommandSetOnline:
		return nil, h.services.Presence.SetOnline(ctx, cmd.UserID, cmd.IsOnline)
	case event.CommandOpenConversation:
		return h.services.Conversations.GetOrCreate(ctx, cmd.UserID, cmd.OtherUserID)
	case event.CommandSendMessage:
		return h.services.Messages.Send(ctx, cmd.ConversationID, cmd.UserID, cmd.Content)
	case event.CommandDeleteMessage:
		return nil, h.services.Messages.SoftDelete(ctx, cmd.MessageID, cmd.UserID)
	case event.CommandMarkRead:
		return nil, h.services.Conversations.MarkRead(ctx, cmd.ConversationID, cmd.UserID)
	case event.CommandSetTyping:
		return nil, h.services.Typing.SetTyping(ctx, cmd.ConversationID, cmd.UserID, cmd.IsTyping)
	default:
		return nil, service.ErrValidation
	}
}

func (h *Hub) sendError(c *Client, requestID, code, message string) {
	payload, _ := json.Marshal(event.ErrorPayload{Code: code, Message: message})
	c.SafeSend(event.WsEvent{
		Event:     event.EventError,
		RequestID: requestID,
		Payload:   payload,
	}, sendTimeout)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, reactive.ErrInvalidQuery):
		return event.CodeValidation
	case errors.Is(err, service.ErrUnauthorized):
		return event.CodeUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return event.CodeNotFound
	default:
		return event.CodeInternal
	}
}

func (h *Hub) Stop() {
	h.cancel()

	h.mu.RLock()
	for _, client := range h.sessions {
		client.Close()
	}
	h.mu.RUnlock()

	// inbound is never closed: reader goroutines may still be sending into
	// it while their connections wind down. Workers exit via ctx.
	h.wg.Wait()
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	return ok
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := websocketUpgrader
	upgrader.CheckOrigin = h.checkOrigin

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(userID, conn, h)
}
