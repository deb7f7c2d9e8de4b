package entry

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Category tells orders and phone messages apart. Every well-formed
// entry has exactly one.
type Category string

const (
	CategoryOrder   Category = "order"
	CategoryMessage Category = "message"
)

// OrderType is how the customer wants their food.
type OrderType string

const (
	OrderPickUp   OrderType = "pickup"
	OrderDelivery OrderType = "delivery"
)

// Entry is one normalized record from the live collection. Price and
// pickup time stay as display strings; they are never parsed.
type Entry struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`

	// Order fields
	OrderID         string     `json:"order_id,omitempty"`
	CustomerName    string     `json:"customer_name,omitempty"`
	OrderType       OrderType  `json:"order_type,omitempty"`
	DeliveryAddress string     `json:"delivery_address,omitempty"`
	Items           []string   `json:"items,omitempty"`
	TotalPrice      string     `json:"total_price,omitempty"`
	PickupTime      string     `json:"pickup_time,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`

	// Message fields
	CallerName  string `json:"caller_name,omitempty"`
	CallerPhone string `json:"caller_phone,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// PlacedAt is best-effort; Dated is false when the raw date string
	// could not be parsed.
	PlacedAt time.Time `json:"placed_at"`
	Dated    bool      `json:"dated"`

	// Raw keeps the original record JSON so archival can copy it verbatim.
	Raw string `json:"-"`
}

// Upstream producers have renamed fields over time. Each logical
// attribute is looked up through an ordered alias list; the first
// present alias wins.
var (
	aliasTag         = []string{"Type", "Category", "Order Type", "Order_Type"}
	aliasOrderID     = []string{"Order ID", "Order_ID", "OrderID", "order_id"}
	aliasCustomer    = []string{"Customer Name", "Customer_Name", "customer_name"}
	aliasOrderType   = []string{"Order Type", "Order_Type", "order_type"}
	aliasAddress     = []string{"Delivery Address", "Delivery_Address", "delivery_address"}
	aliasItems       = []string{"Order Items", "Order_Items", "order_items", "Items"}
	aliasTotal       = []string{"Total Price", "Total_Price", "total_price", "Total"}
	aliasPickupTime  = []string{"Pickup Time", "Pickup_Time", "pickup_time"}
	aliasPlacedAt    = []string{"Order Date", "Order_Date", "OrderDate", "order_date", "Message Date", "Message_Date"}
	aliasAcceptedAt  = []string{"Accepted At", "Accepted_At", "accepted_at"}
	aliasCallerName  = []string{"Caller Name", "Caller_Name", "caller_name"}
	aliasCallerPhone = []string{"Caller Phone", "Caller_Phone", "caller_phone", "Phone"}
	aliasReason      = []string{"Message Reason", "Message_Reason", "Call Reason", "Call_Reason", "Reason"}
)

func lookup(raw gjson.Result, aliases []string) string {
	for _, a := range aliases {
		if v := raw.Get(escapeKey(a)); v.Exists() {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func has(raw gjson.Result, aliases []string) bool {
	for _, a := range aliases {
		if raw.Get(escapeKey(a)).Exists() {
			return true
		}
	}
	return false
}

// escapeKey protects literal dots in field names from gjson path syntax.
func escapeKey(k string) string {
	return strings.ReplaceAll(k, ".", `\.`)
}

// Classify turns a raw record into a normalized Entry. The second
// return value is false for malformed records, which are dropped from
// alerting, display and archival alike.
func Classify(id string, raw gjson.Result) (Entry, bool) {
	if !raw.IsObject() {
		return Entry{}, false
	}

	e := Entry{ID: id, Raw: raw.Raw}

	cat, tagged := tagCategory(raw)
	if !tagged {
		cat = structuralCategory(raw)
	}

	switch cat {
	case CategoryMessage:
		e.Category = CategoryMessage
		e.CallerName = lookup(raw, aliasCallerName)
		e.CallerPhone = lookup(raw, aliasCallerPhone)
		e.Reason = lookup(raw, aliasReason)
		if e.CallerName == "" && e.CallerPhone == "" && e.Reason == "" {
			return Entry{}, false
		}
	case CategoryOrder:
		e.Category = CategoryOrder
		e.OrderID = lookup(raw, aliasOrderID)
		e.CustomerName = lookup(raw, aliasCustomer)
		e.Items = SplitItems(lookup(raw, aliasItems))
		if len(e.Items) == 0 {
			return Entry{}, false
		}
		e.TotalPrice = lookup(raw, aliasTotal)
		e.PickupTime = lookup(raw, aliasPickupTime)
		e.OrderType = parseOrderType(lookup(raw, aliasOrderType))
		if e.OrderType == OrderDelivery {
			e.DeliveryAddress = lookup(raw, aliasAddress)
		}
		if s := lookup(raw, aliasAcceptedAt); s != "" {
			if t, ok := ParseWhen(s); ok {
				e.AcceptedAt = &t
			}
		}
	default:
		return Entry{}, false
	}

	e.PlacedAt, e.Dated = ParseWhen(lookup(raw, aliasPlacedAt))
	return e, true
}

// tagCategory honors an explicit, trustworthy category tag when one is
// present. It beats the structural heuristic.
func tagCategory(raw gjson.Result) (Category, bool) {
	tag := strings.ToUpper(lookup(raw, aliasTag))
	switch strings.ReplaceAll(tag, "_", " ") {
	case "MESSAGE":
		return CategoryMessage, true
	case "PICK UP", "PICKUP", "DELIVERY":
		return CategoryOrder, true
	}
	return "", false
}

// structuralCategory decides on record shape: a record with no order
// identifier and no items but at least one caller field is a message;
// anything with an items field is an order; the rest is malformed.
func structuralCategory(raw gjson.Result) Category {
	hasOrderID := has(raw, aliasOrderID)
	hasItems := has(raw, aliasItems)
	hasCaller := has(raw, aliasCallerName) || has(raw, aliasCallerPhone) || has(raw, aliasReason)

	if !hasOrderID && !hasItems && hasCaller {
		return CategoryMessage
	}
	if hasItems {
		return CategoryOrder
	}
	return ""
}

func parseOrderType(s string) OrderType {
	switch strings.ReplaceAll(strings.ToUpper(s), "_", " ") {
	case "DELIVERY":
		return OrderDelivery
	case "PICK UP", "PICKUP":
		return OrderPickUp
	}
	return ""
}

// SplitItems parses the comma-joined item string into trimmed items,
// dropping empties.
func SplitItems(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}

// ClassifyAll classifies a fetched collection and partitions it into
// orders and messages, each sorted newest first. Malformed records are
// silently dropped.
func ClassifyAll(records map[string]gjson.Result) (orders, messages []Entry) {
	for id, raw := range records {
		e, ok := Classify(id, raw)
		if !ok {
			continue
		}
		switch e.Category {
		case CategoryOrder:
			orders = append(orders, e)
		case CategoryMessage:
			messages = append(messages, e)
		}
	}
	Sort(orders)
	Sort(messages)
	return orders, messages
}
