/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the wire contract. Amounts travel as JSON numbers, months as
  "YYYY-MM" strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Handlers validate; DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/esaar/collection-engine/billing"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// AdminPasswordsRequest rotates the fixed accounts' passwords. Either
// field may be blank to leave that account as it is.
type AdminPasswordsRequest struct {
	AdminPassword      string `json:"adminPassword"`
	SuperAdminPassword string `json:"superAdminPassword"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	Username string `json:"username"`
	City     string `json:"city,omitempty"`
}

func toUserDTO(u billing.User) UserDTO {
	return UserDTO{
		ID:       string(u.ID),
		Name:     u.Name,
		Phone:    u.Phone,
		Role:     string(u.Role),
		Username: u.Username,
		City:     u.City,
	}
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Password string `json:"password"`
	City     string `json:"city"`
}

// =============================================================================
// DONORS
// =============================================================================

type DonorDTO struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Phone               string  `json:"phone"`
	Address             string  `json:"address"`
	City                string  `json:"city"`
	MonthlyPledge       float64 `json:"monthlyAmount"`
	ReferredBy          string  `json:"referredBy"`
	AssignedCollectorID string  `json:"assignedCollectorId,omitempty"`
	JoinDate            string  `json:"joinDate"`
}

func toDonorDTO(d billing.Donor) DonorDTO {
	pledge, _ := d.MonthlyPledge.Value.Float64()
	return DonorDTO{
		ID:                  string(d.ID),
		Name:                d.Name,
		Phone:               d.Phone,
		Address:             d.Address,
		City:                d.City,
		MonthlyPledge:       pledge,
		ReferredBy:          d.ReferredBy,
		AssignedCollectorID: string(d.AssignedCollectorID),
		JoinDate:            d.JoinDate,
	}
}

type SaveDonorRequest struct {
	Name                string  `json:"name"`
	Phone               string  `json:"phone"`
	Address             string  `json:"address"`
	City                string  `json:"city"`
	MonthlyPledge       float64 `json:"monthlyAmount"`
	ReferredBy          string  `json:"referredBy"`
	AssignedCollectorID string  `json:"assignedCollectorId"`
	JoinDate            string  `json:"joinDate"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type RecordPaymentRequest struct {
	DonorID string  `json:"donorId"`
	Amount  float64 `json:"amount,omitempty"` // 0 = full monthly pledge
	Method  string  `json:"paymentMethod"`
}

type PaymentDTO struct {
	ID            string  `json:"id"`
	DonorID       string  `json:"donorId"`
	DonorName     string  `json:"donorName"`
	Amount        float64 `json:"amount"`
	CollectorID   string  `json:"collectorId"`
	CollectorName string  `json:"collectorName"`
	Date          string  `json:"date"`
	Method        string  `json:"paymentMethod"`
	ReceiptSent   bool    `json:"receiptSent"`
	ReceiptLink   string  `json:"receiptLink,omitempty"`
}

func toPaymentDTO(p billing.PaymentRecord) PaymentDTO {
	amount, _ := p.Amount.Value.Float64()
	return PaymentDTO{
		ID:            string(p.ID),
		DonorID:       string(p.DonorID),
		DonorName:     p.DonorName,
		Amount:        amount,
		CollectorID:   string(p.CollectorID),
		CollectorName: p.CollectorName,
		Date:          p.RecordedAt.Format(time.RFC3339),
		Method:        string(p.Method),
		ReceiptSent:   p.ReceiptSent,
	}
}

// =============================================================================
// STANDING AND PERIOD
// =============================================================================

type StandingDTO struct {
	DonorID          string  `json:"donorId"`
	ActiveMonth      string  `json:"activeMonth"`
	TotalDue         float64 `json:"totalDue"`
	Arrears          float64 `json:"arrears"`
	PaidThisMonth    float64 `json:"paidThisMonth"`
	CurrentShortfall float64 `json:"currentShortfall"`
	Collected        bool    `json:"collected"`
}

func toStandingDTO(s billing.Standing) StandingDTO {
	totalDue, _ := s.TotalDue.Value.Float64()
	arrears, _ := s.Arrears.Value.Float64()
	paid, _ := s.PaidThisMonth.Value.Float64()
	shortfall, _ := s.CurrentShortfall.Value.Float64()
	return StandingDTO{
		DonorID:          string(s.DonorID),
		ActiveMonth:      s.ActiveMonth.String(),
		TotalDue:         totalDue,
		Arrears:          arrears,
		PaidThisMonth:    paid,
		CurrentShortfall: shortfall,
		Collected:        s.Collected(),
	}
}

type PeriodDTO struct {
	ActiveMonth string `json:"activeMonth"`
	SystemStart string `json:"systemStart"`
	AtFloor     bool   `json:"atFloor"`
}

func toPeriodDTO(p billing.BillingPeriod) PeriodDTO {
	return PeriodDTO{
		ActiveMonth: p.Active.String(),
		SystemStart: p.Floor.String(),
		AtFloor:     p.AtFloor(),
	}
}

// ConfirmRequest gates the destructive operations: reset, wipe,
// restore. The client must send confirm=true; a bare POST is refused.
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

type CityRequest struct {
	Name string `json:"name"`
}
