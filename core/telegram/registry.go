package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/core/telegram/commands"
)

const wireComponent = "tg.wire"

// Registry holds bot commands, callback handlers and the text fallback.
// Commands are registered before the bot starts; callbacks may be added
// at any time.
type Registry struct {
	commands map[string]commands.Command

	callbacksMu      sync.RWMutex
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc

	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry whose unknown callbacks answer
// with a short toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Действие недоступно"})
		},
	}
}

// RegisterCommand adds the "/name" command.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		return fmt.Errorf("telegram: command %q needs a handler and a description", name)
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("telegram: command %q must start with /", name)
	}
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("telegram: command %s registered twice", name)
	}
	r.commands[name] = cmd
	logger.Debug(context.Background(), wireComponent, "register.command",
		slog.String("op", name),
		slog.Bool("admin", cmd.AdminOnly),
	)
	return nil
}

// ListCommands returns the commands sorted by name. With visibleOnly,
// hidden and admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand finds a command by name, with or without the leading slash.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback maps an inline button key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("telegram: callback %q needs a key and a handler", key)
	}
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("telegram: callback %s registered twice", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackCount reports how many callback keys are registered.
func (r *Registry) CallbackCount() int {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	return len(r.callbacks)
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// commandSetter is the part of *tele.Bot used to publish command menus.
type commandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the public command menu and, when adminID is
// set, the full menu scoped to the admin's private chat.
func InitBotCommands(bot commandSetter, reg *Registry, adminID int64) {
	ctx := context.Background()
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.Error(ctx, wireComponent, "commands.set_failed", slog.String("err", err.Error()))
	}
	if adminID == 0 {
		return
	}
	scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: adminID}
	if err := bot.SetCommands(reg.ListCommands(false), scope); err != nil {
		logger.Warn(ctx, wireComponent, "commands.admin_set_failed",
			slog.Int64("user_id", adminID),
			slog.String("err", err.Error()),
		)
	}
}
