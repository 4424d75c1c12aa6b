package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZewK3/Home-sub002/internal/api"
)

// parseCart builds a cart from --item values of the form
// "name:price:quantity[:option=price,option=price]".
func parseCart(items []string) (api.Cart, error) {
	if len(items) == 0 {
		return nil, errors.New("at least one --item is required")
	}
	cart := make(api.Cart, 0, len(items))
	for _, raw := range items {
		li, err := parseItem(raw)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", raw, err)
		}
		cart = append(cart, li)
	}
	return cart, cart.Validate()
}

func parseItem(raw string) (api.LineItem, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 {
		return api.LineItem{}, errors.New("want name:price:quantity[:options]")
	}
	name := strings.TrimSpace(parts[0])
	price, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return api.LineItem{}, fmt.Errorf("price: %w", err)
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return api.LineItem{}, fmt.Errorf("quantity: %w", err)
	}
	li := api.LineItem{Name: name, Price: price, Quantity: qty}
	if len(parts) == 4 && strings.TrimSpace(parts[3]) != "" {
		for _, opt := range strings.Split(parts[3], ",") {
			optName, optPrice, ok := strings.Cut(opt, "=")
			if !ok {
				return api.LineItem{}, fmt.Errorf("option %q: want name=price", opt)
			}
			p, err := strconv.ParseInt(strings.TrimSpace(optPrice), 10, 64)
			if err != nil {
				return api.LineItem{}, fmt.Errorf("option %q price: %w", opt, err)
			}
			li.Options = append(li.Options, api.Option{Name: strings.TrimSpace(optName), Price: p})
		}
	}
	return li, nil
}
