package debtcase

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire format of every timestamp the API emits.
const TimeLayout = "2006-01-02 15:04:05"

// Timestamp is a local wall-clock time in TimeLayout. Null or empty decodes
// to the zero value.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	v, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		// Some payloads carry ISO-8601 with a T separator.
		v, err = time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
		if err != nil {
			return fmt.Errorf("debtcase: parse timestamp %q: %w", s, err)
		}
	}
	t.Time = v
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(TimeLayout) + `"`), nil
}

type User struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

type Company struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Domain   string `json:"domain"`
	Locality string `json:"locality"`
}

type Creditor struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	PhoneNumber   string   `json:"phoneNumber"`
	Email         string   `json:"email"`
	AccountNumber string   `json:"accountNumber"`
	User          User     `json:"user"`
	Company       *Company `json:"company,omitempty"`
}

type Debtor struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// FullName is "Name Surname".
func (d Debtor) FullName() string {
	return strings.TrimSpace(d.Name + " " + d.Surname)
}

type DebtCaseType struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// Label turns an enum-style type such as "MEDICAL_BILL" into "Medical Bill".
func (t DebtCaseType) Label() string {
	words := strings.Split(strings.ToLower(t.Type), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Known case statuses. Servers may send others; they are grouped verbatim.
const (
	StatusUnpaid = "UNPAID"
	StatusClosed = "CLOSED"
)

type DebtCase struct {
	ID               int          `json:"id"`
	AmountOwed       float64      `json:"amountOwed"`
	LateInterestRate float64      `json:"lateInterestRate"`
	DueDate          Timestamp    `json:"dueDate"`
	CreatedDate      Timestamp    `json:"createdDate"`
	ModifiedDate     Timestamp    `json:"modifiedDate"`
	Type             DebtCaseType `json:"debtCaseType"`
	Status           string       `json:"debtCaseStatus"`
	Creditor         Creditor     `json:"creditor"`
	Debtor           Debtor       `json:"debtor"`
}

// Payable reports whether a debtor may still pay the case.
func (c DebtCase) Payable() bool {
	return !strings.EqualFold(c.Status, StatusClosed)
}

type Payment struct {
	ID            int       `json:"id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	Description   string    `json:"description"`
	PaymentDate   Timestamp `json:"paymentDate"`
	DebtCase      DebtCase  `json:"debtCase"`
}

// PaymentStrategy holds the remaining total balance per month under the
// snowball and avalanche repayment methods.
type PaymentStrategy struct {
	Snowball  []float64 `json:"snowballBalanceEachMonth"`
	Avalanche []float64 `json:"avalancheBalanceEachMonth"`
}

// Months is the payoff horizon of the slower method.
func (s PaymentStrategy) Months() int {
	return max(len(s.Snowball), len(s.Avalanche))
}

// EditRequest updates a case owned by a creditor.
type EditRequest struct {
	AmountOwed float64   `json:"amountOwed"`
	DueDate    Timestamp `json:"dueDate"`
	TypeID     int       `json:"typeId"`
}

type StrategyRequest struct {
	MinimalMonthlyPayment float64 `json:"minimalMonthlyPaymentForEachDebt"`
	ExtraMonthlyPayment   float64 `json:"extraMonthlyPaymentForHighestDebt"`
}

// PaymentRequest pays a case with a tokenized card source.
type PaymentRequest struct {
	SourceID      string  `json:"sourceId"`
	PaymentAmount float64 `json:"paymentAmount"`
	PaymentInFull bool    `json:"isPaymentInFull"`
}
