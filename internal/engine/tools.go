package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// The demo tools are deterministic in shape and random in value: lookups
// answer any identifier with a plausible record rather than consulting a
// store.

var orderStatuses = []string{"processing", "shipped", "delivered", "delayed", "returned"}

var ticketStatuses = []string{"open", "pending", "resolved", "closed"}

var ticketPriorities = []string{"low", "normal", "high", "urgent"}

var catalogItems = []string{
	"USB-C Dock",
	"Mechanical Keyboard",
	"4K Webcam",
	"Laptop Stand",
	"Noise-Cancelling Headset",
	"Portable SSD",
}

var supportAgents = []string{"ana", "jordan", "mei", "sam", "victor"}

// registerTools declares the demo tool surface on the protocol engine.
func registerTools(s *server.MCPServer) {
	lookupOrderTool := mcp.NewTool("lookup_order",
		mcp.WithDescription("Look up a customer order by its order ID"),
		mcp.WithString("order_id",
			mcp.Required(),
			mcp.Description("Order identifier, e.g. ORD-10293"),
		),
	)
	s.AddTool(lookupOrderTool, handleLookupOrder)

	lookupTicketTool := mcp.NewTool("lookup_ticket",
		mcp.WithDescription("Look up a support ticket by its ticket ID"),
		mcp.WithString("ticket_id",
			mcp.Required(),
			mcp.Description("Ticket identifier, e.g. TCK-5521"),
		),
	)
	s.AddTool(lookupTicketTool, handleLookupTicket)

	renderEmailTool := mcp.NewTool("render_support_email",
		mcp.WithDescription("Render a support email from a built-in template"),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Template name: "+templateNamesList()),
		),
		mcp.WithString("customer_name",
			mcp.Required(),
			mcp.Description("Customer name used in the greeting"),
		),
		mcp.WithString("reference",
			mcp.Description("Order or ticket reference to mention in the email"),
		),
	)
	s.AddTool(renderEmailTool, handleRenderSupportEmail)
}

func handleLookupOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID, err := request.RequireString("order_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	itemCount := 1 + rand.IntN(3)
	items := make([]map[string]interface{}, 0, itemCount)
	total := 0.0
	for i := 0; i < itemCount; i++ {
		price := float64(1500+rand.IntN(20000)) / 100
		qty := 1 + rand.IntN(2)
		total += price * float64(qty)
		items = append(items, map[string]interface{}{
			"name":     catalogItems[rand.IntN(len(catalogItems))],
			"quantity": qty,
			"price":    price,
		})
	}

	order := map[string]interface{}{
		"orderId":   orderID,
		"status":    orderStatuses[rand.IntN(len(orderStatuses))],
		"placedAt":  time.Now().AddDate(0, 0, -rand.IntN(30)).Format(time.RFC3339),
		"items":     items,
		"total":     fmt.Sprintf("%.2f", total),
		"currency":  "EUR",
		"simulated": true,
	}

	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format order: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleLookupTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticketID, err := request.RequireString("ticket_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ticket := map[string]interface{}{
		"ticketId":  ticketID,
		"status":    ticketStatuses[rand.IntN(len(ticketStatuses))],
		"priority":  ticketPriorities[rand.IntN(len(ticketPriorities))],
		"assignee":  supportAgents[rand.IntN(len(supportAgents))],
		"openedAt":  time.Now().AddDate(0, 0, -rand.IntN(14)).Format(time.RFC3339),
		"updates":   1 + rand.IntN(5),
		"simulated": true,
	}

	data, err := json.MarshalIndent(ticket, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format ticket: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleRenderSupportEmail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateName, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	customerName, err := request.RequireString("customer_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reference := request.GetString("reference", "")

	rendered, err := renderEmail(templateName, emailData{
		CustomerName: customerName,
		Reference:    reference,
		Agent:        supportAgents[rand.IntN(len(supportAgents))],
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(rendered), nil
}
