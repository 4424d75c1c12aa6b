// Package api defines the JSON contract shared by the HTTP handlers and the checkout client.
package api

import (
	"time"

	orderdomain "github.com/ZewK3/Home-sub002/internal/order/domain"
)

// Action names accepted by the legacy ?action= dispatcher.
const (
	ActionLoginUser         = "loginUser"
	ActionRegisterUser      = "registerUser"
	ActionLogin             = "login"
	ActionRegister          = "register"
	ActionSaveOrder         = "saveOrder"
	ActionReserveOrder      = "reserveOrder"
	ActionUpdateOrderStatus = "updateOrderStatus"
	ActionGetOrders         = "getOrders"
	ActionGetOrderByID      = "getOrderById"
	ActionCancelOrder       = "cancelOrder"
	ActionGetUser           = "getUser"
	ActionAdjustUserExp     = "adjustUserExp"
	ActionCheckTransaction  = "checkTransaction"
	ActionSavePayment       = "savePayment"
	ActionMe                = "me"
	ActionLogout            = "logout"
)

// Cart wire types are the order domain's; they carry their own JSON tags.
type (
	Cart     = orderdomain.Cart
	LineItem = orderdomain.LineItem
	Option   = orderdomain.Option
	Delivery = orderdomain.Delivery
)

type RegisterCustomerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginCustomerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterEmployeeRequest struct {
	EmployeeID string `json:"employeeId"`
	FullName   string `json:"fullName"`
	StoreName  string `json:"storeName,omitempty"`
	Position   string `json:"position,omitempty"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	// JoinDate is YYYY-MM-DD.
	JoinDate string `json:"joinDate,omitempty"`
	Password string `json:"password"`
}

type LoginEmployeeRequest struct {
	EmployeeID string `json:"employeeId"`
	Password   string `json:"password"`
}

// SessionResponse is returned by every successful login and by customer registration.
type SessionResponse struct {
	Token       string    `json:"token"`
	PrincipalID string    `json:"principalId"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	LastAccess  time.Time `json:"lastAccess"`
}

type EmployeeRegistrationResponse struct {
	EmployeeID string `json:"employeeId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// SaveOrderRequest is the checkout's pending order. OrderID is the client's temporary id.
type SaveOrderRequest struct {
	OrderID       string    `json:"orderId"`
	Cart          Cart      `json:"cart"`
	Status        string    `json:"status"`
	Total         int64     `json:"total"`
	TransactionID string    `json:"transactionId,omitempty"`
	Delivery      *Delivery `json:"delivery,omitempty"`
}

type SaveOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Total   int64  `json:"total"`
	Message string `json:"message,omitempty"`
}

type UpdateStatusRequest struct {
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status"`
}

type StatusResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	GainedExp int64  `json:"gainedExp"`
	NewExp    int64  `json:"newExp"`
	NewRank   string `json:"newRank"`
}

type Order struct {
	OrderID       string    `json:"orderId"`
	ClientRef     string    `json:"clientRef,omitempty"`
	Cart          Cart      `json:"cart"`
	Status        string    `json:"status"`
	Total         int64     `json:"total"`
	TransactionID string    `json:"transactionId,omitempty"`
	Delivery      *Delivery `json:"delivery,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type OrdersResponse struct {
	Orders []Order `json:"orders"`
}

// CheckTransactionResponse answers a payment confirmation poll. Success is false with a Message
// when no payment carries the correlation id yet.
type CheckTransactionResponse struct {
	Success     bool       `json:"success"`
	ID          string     `json:"id,omitempty"`
	Amount      int64      `json:"amount,omitempty"`
	DateTime    *time.Time `json:"dateTime,omitempty"`
	Description string     `json:"description,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// PaymentNotification is one bank transfer parsed from a notification mail.
type PaymentNotification struct {
	ExtractedID    string     `json:"extractedId"`
	Amount         int64      `json:"amount"`
	AccountNumber  string     `json:"accountNumber,omitempty"`
	TransactionRef string     `json:"transactionRef,omitempty"`
	Description    string     `json:"description,omitempty"`
	DateTime       *time.Time `json:"dateTime,omitempty"`
}

type IngestRequest struct {
	Emails []PaymentNotification `json:"emails"`
}

type IngestResponse struct {
	Success  bool `json:"success"`
	Received int  `json:"received"`
	Inserted int  `json:"inserted"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
	Rank  string `json:"rank"`
}

type AdjustExpRequest struct {
	UserID    string `json:"userId"`
	ExpChange int64  `json:"expChange"`
}

type MeResponse struct {
	PrincipalID string `json:"principalId"`
	Kind        string `json:"kind"`
	Role        string `json:"role,omitempty"`
}
