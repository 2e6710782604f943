// Package commands describes slash commands kept in the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one slash command. AdminOnly commands are wrapped with the
// admin check by the router and shown in the admin's menu only; Hidden
// commands work but are never listed.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}
