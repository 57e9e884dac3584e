package whatsapp

import (
	"fmt"
	"strings"

	"github.com/grovetools/wagate/pkg/client"
	"go.mau.fi/whatsmeow/types"
)

// ToJID converts a gateway address ("<digits>@c.us" or "<id>@g.us") into a
// protocol JID. Bare ids are treated as user numbers.
func ToJID(address string) (types.JID, error) {
	user, server, found := strings.Cut(address, "@")
	if user == "" {
		return types.JID{}, fmt.Errorf("invalid address %q", address)
	}
	if !found {
		server = client.UserServer
	}
	switch server {
	case client.UserServer, types.DefaultUserServer:
		return types.NewJID(user, types.DefaultUserServer), nil
	case client.GroupServer:
		return types.NewJID(user, types.GroupServer), nil
	default:
		return types.ParseJID(address)
	}
}

// FromJID converts a protocol JID back into a gateway address.
func FromJID(jid types.JID) string {
	switch jid.Server {
	case types.DefaultUserServer:
		return jid.User + "@" + client.UserServer
	case types.GroupServer:
		return jid.User + "@" + client.GroupServer
	default:
		return jid.ToNonAD().String()
	}
}
