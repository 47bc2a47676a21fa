package repository

import (
	"fmt"

	"github.com/kirinyoku/tix-ledger/internal/domain"
)

const ns = "tixledger:v1"

// Key is an opaque storage key. Backends store it verbatim.
type Key string

func (k Key) String() string { return string(k) }

func KeyEvent(id uint32) Key {
	return Key(fmt.Sprintf("%s:event:%d", ns, id))
}

func KeyTicket(owner domain.Address, ticketID uint32) Key {
	return Key(fmt.Sprintf("%s:ticket:%s:%d", ns, owner, ticketID))
}

func KeyEventIndex() Key {
	return Key(ns + ":events:index")
}

func KeyOwnerIndex(owner domain.Address) Key {
	return Key(fmt.Sprintf("%s:owner:%s:tickets", ns, owner))
}
