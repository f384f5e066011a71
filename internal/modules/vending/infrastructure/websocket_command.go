package infrastructure

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

var errKioskBusy = errors.New("kiosk is busy, try again")

type Command struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IntentSink receives user intents decoded from display commands.
type IntentSink interface {
	Submit(intent domain.Intent) bool
}

type CommandHandler func(client *Client, cmd Command)

type CommandProcessor struct {
	sink     IntentSink
	handlers map[string]CommandHandler
}

func NewCommandProcessor(sink IntentSink) *CommandProcessor {
	processor := &CommandProcessor{
		sink:     sink,
		handlers: make(map[string]CommandHandler),
	}
	processor.Register("order", processor.handleOrder)
	processor.Register("cancel", processor.handleCancel)
	processor.Register("ping", processor.handlePing)
	return processor
}

func (p *CommandProcessor) Register(action string, handler CommandHandler) {
	key := normalizeAction(action)
	if handler == nil || key == "" {
		return
	}
	p.handlers[key] = handler
}

func (p *CommandProcessor) Process(client *Client, cmd Command) {
	if client == nil {
		return
	}
	action := normalizeAction(cmd.Action)
	if action == "" {
		return
	}
	handler, ok := p.handlers[action]
	if !ok {
		slog.Debug("ws command ignored", slog.String("displayId", client.displayID), slog.String("action", action))
		sendCommandError(client, "unsupported action")
		return
	}
	handler(client, cmd)
}

func (p *CommandProcessor) handleOrder(client *Client, cmd Command) {
	var req domain.OrderRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil || req.MachineID == 0 {
		slog.Warn("ws order decode failed", slog.String("displayId", client.displayID), slog.Any("error", err))
		sendCommandError(client, "invalid payload")
		return
	}
	slog.Info("ws order requested", slog.String("displayId", client.displayID), slog.Int64("machineId", req.MachineID), slog.Int64("slot", req.Slot))
	if !p.sink.Submit(req) {
		sendCommandError(client, errKioskBusy.Error())
	}
}

func (p *CommandProcessor) handleCancel(client *Client, _ Command) {
	slog.Info("ws cancel requested", slog.String("displayId", client.displayID))
	if !p.sink.Submit(domain.CancelRequest{}) {
		sendCommandError(client, errKioskBusy.Error())
	}
}

func (p *CommandProcessor) handlePing(client *Client, _ Command) {
	client.SendDomainMessage(&domain.Message{
		Topic:     domain.TopicSystemPong,
		Entity:    domain.SystemEntity,
		Action:    domain.ActionPong,
		Timestamp: time.Now().UTC(),
	})
}

func sendCommandError(client *Client, reason string) {
	client.SendDomainMessage(domain.BuildErrorMessage(reason, time.Now()))
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}
