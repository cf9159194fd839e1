package redisx

import "fmt"

const ns = "ticketd:v1"

func KeyEventList() string {
	return ns + ":events:list"
}

func KeyEventAvailability(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:availability", ns, eventID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelStockChanged() string {
	return ns + ":stock:changed"
}
