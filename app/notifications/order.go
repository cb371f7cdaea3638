// Package notifications holds the messages the shop sends about orders.
package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/kafka"
	"github.com/shashiranjanraj/kashvi-shop/pkg/notification"
)

const (
	EventOrderPlaced   = "order.placed"
	EventStatusChanged = "order.status_changed"
)

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(`<h2>Order Confirmation</h2>
<p>Thank you for your order #{{.ID}}.</p>
<ul>
{{- range .Items}}
  <li>{{.Name}} × {{.Quantity}}: ${{.Price}}</li>
{{- end}}
</ul>
<p><strong>Total:</strong> ${{.Total}}</p>
<p><strong>Shipping Address:</strong> {{.Address}}</p>
`))

	statusTmpl = template.Must(template.New("status").Parse(`<p>Order <strong>#{{.ID}}</strong> status: {{.Status}}</p>
`))
)

type lineView struct {
	Name     string
	Quantity int
	Price    string
}

type orderView struct {
	ID      uint
	Items   []lineView
	Total   string
	Address string
	Status  models.OrderStatus
}

func newOrderView(o *models.Order) orderView {
	v := orderView{
		ID:      o.ID,
		Items:   make([]lineView, len(o.Items)),
		Total:   o.Total.StringFixed(2),
		Address: o.ShippingAddress,
		Status:  o.Status,
	}
	for i, it := range o.Items {
		v.Items[i] = lineView{Name: it.Name, Quantity: it.Quantity, Price: it.Price.StringFixed(2)}
	}
	return v
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// orderPayload is the event body shared by every order event.
func orderPayload(o *models.Order, status models.OrderStatus) map[string]any {
	items := make([]map[string]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"product_id": it.ProductID,
			"name":       it.Name,
			"quantity":   it.Quantity,
			"price":      it.Price.StringFixed(2),
		}
	}
	return map[string]any{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"status":   string(status),
		"total":    o.Total.StringFixed(2),
		"items":    items,
	}
}

// OrderConfirmation is sent once an order is committed.
type OrderConfirmation struct {
	Order *models.Order
}

func (n OrderConfirmation) Via() []string {
	return []string{notification.ChannelMail, notification.ChannelEvent}
}

func (n OrderConfirmation) ToMail() (notification.MailData, error) {
	body, err := render(confirmationTmpl, newOrderView(n.Order))
	if err != nil {
		return notification.MailData{}, err
	}
	return notification.MailData{Subject: "Order Confirmation", Body: body}, nil
}

func (n OrderConfirmation) ToEvent() notification.EventData {
	return notification.EventData{
		Key:     strconv.FormatUint(uint64(n.Order.ID), 10),
		Payload: kafka.NewEvent(EventOrderPlaced, orderPayload(n.Order, n.Order.Status)),
	}
}

// StatusChanged tells the customer their order moved to Status. Only
// shipped and delivered have a customer-facing subject.
type StatusChanged struct {
	Order  *models.Order
	Status models.OrderStatus
}

func (n StatusChanged) Via() []string {
	return []string{notification.ChannelMail, notification.ChannelEvent}
}

func (n StatusChanged) Subject() string {
	switch n.Status {
	case models.StatusShipped:
		return "Your order has shipped"
	case models.StatusDelivered:
		return "Your order was delivered"
	default:
		return fmt.Sprintf("Your order is %s", n.Status)
	}
}

func (n StatusChanged) ToMail() (notification.MailData, error) {
	v := newOrderView(n.Order)
	v.Status = n.Status
	body, err := render(statusTmpl, v)
	if err != nil {
		return notification.MailData{}, err
	}
	return notification.MailData{Subject: n.Subject(), Body: body}, nil
}

func (n StatusChanged) ToEvent() notification.EventData {
	return notification.EventData{
		Key:     strconv.FormatUint(uint64(n.Order.ID), 10),
		Payload: kafka.NewEvent(EventStatusChanged, orderPayload(n.Order, n.Status)),
	}
}
