package audit

import "strings"

// ActionResource holds action and resource derived from an API action name.
type ActionResource struct {
	Action   string
	Resource string
}

// overrides covers action names whose verb or noun cannot be derived mechanically.
var overrides = map[string]ActionResource{
	"getOrders":         {Action: "list", Resource: "order"},
	"getOrderById":      {Action: "get", Resource: "order"},
	"updateOrderStatus": {Action: "update_status", Resource: "order"},
	"adjustUserExp":     {Action: "adjust_exp", Resource: "user"},
	"savePayment":       {Action: "ingest", Resource: "payment"},
	"me":                {Action: "get", Resource: "session"},
	"logout":            {Action: "delete", Resource: "session"},
}

// ParseAction returns action and resource for an API action name (e.g. saveOrder -> create/order).
// The verb prefix maps to get, list, create, update, delete or cancel; the remainder, lower-cased,
// is the resource.
func ParseAction(name string) ActionResource {
	if ar, ok := overrides[name]; ok {
		return ar
	}
	verbs := []struct{ prefix, action string }{
		{"get", "get"},
		{"list", "list"},
		{"save", "create"},
		{"create", "create"},
		{"reserve", "reserve"},
		{"update", "update"},
		{"delete", "delete"},
		{"cancel", "cancel"},
	}
	for _, v := range verbs {
		if strings.HasPrefix(name, v.prefix) && len(name) > len(v.prefix) {
			return ActionResource{Action: v.action, Resource: strings.ToLower(name[len(v.prefix):])}
		}
	}
	if name == "" {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	return ActionResource{Action: strings.ToLower(name), Resource: "unknown"}
}
