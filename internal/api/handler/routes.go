package handler

import "management/backend/internal/routing"

// urlPatterns is the HTTP route table, matched in order.
func (h *Handler) urlPatterns() *routing.Table[View] {
	return routing.MustTable(
		routing.Path[View]("customer/detail/", h.CustomerDetail, "customer_detail"),
		routing.Path[View]("agent/detail/", h.AgentDetail, "agent_detail"),
		routing.Path[View]("ticket/create/", h.TicketCreate, "ticket_create"),
		routing.Path[View]("ticket/<str:id>/assign", h.TicketAssign, "ticket_assign"),
	)
}

// websocketURLPatterns is the WebSocket route table.
func (h *Handler) websocketURLPatterns() *routing.Table[View] {
	return routing.MustTable(
		routing.Path[View]("ws/chatroom/<str:chatroom_name>/", h.ChatroomSocket, "chatroom"),
	)
}
