package redisrepo

import "fmt"

const ns = "tixledger:v1"

func KeyEventSummary(eventID uint32) string {
	return fmt.Sprintf("%s:cache:event:%d", ns, eventID)
}

func KeyEventsList() string {
	return ns + ":cache:events"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

// KeyIdemPurchase scopes an Idempotency-Key to one buyer of one event, so
// two buyers reusing the same key never see each other's ticket.
func KeyIdemPurchase(eventID uint32, buyer, idemKey string) string {
	return fmt.Sprintf("%s:idem:purchase:%d:%s:%s", ns, eventID, buyer, idemKey)
}

func ChannelEventsChanged() string {
	return ns + ":events:changed"
}
