package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Direction = "INCOME"
	Expense Direction = "EXPENSE"
)

const (
	Tithe               Category = "TITHE"
	Offering            Category = "OFFERING"
	ChildrenMinistry    Category = "CHILDREN_MINISTRY"
	UtilityBill         Category = "UTILITY_BILL"
	Maintenance         Category = "MAINTENANCE"
	SocialAid           Category = "SOCIAL_AID"
	Rent                Category = "RENT"
	EmergencyWithdrawal Category = "EMERGENCY_WITHDRAWAL"
	RentAllocation      Category = "RENT_ALLOCATION"
	Other               Category = "OTHER"
)

const (
	FundRentReserve FundType = "RENT_RESERVE"
	FundEmergency   FundType = "EMERGENCY"
	FundUtilities   FundType = "UTILITIES"
	FundGeneral     FundType = "GENERAL"
	FundChildren    FundType = "CHILDREN"
)

// MaxDescriptionLength is the longest description accepted, in characters.
const MaxDescriptionLength = 200

// ReplenishmentDescription is the description of the entry synthesised
// alongside every rent payment.
const ReplenishmentDescription = "Automatic replenishment - Rent reserve"

type (
	Direction string
	Category  string
	FundType  string

	Date struct {
		time.Time
	}

	// Allocations maps each fund to the signed delta an entry applied to it.
	// The map is an audit trail; balances are always derived from scratch.
	Allocations map[FundType]Money

	// Entry is one ledger row. Amount is always positive; Direction carries the sign.
	Entry struct {
		ID               string      `json:"id"`
		Seq              int64       `json:"seq"`
		Date             Date        `json:"date"`
		Description      string      `json:"description"`
		Amount           Money       `json:"amount"`
		Direction        Direction   `json:"direction"`
		Category         Category    `json:"category"`
		FundAllocations  Allocations `json:"fundAllocations,omitempty"`
		InvoiceRef       string      `json:"invoiceRef,omitempty"`
		InternalTransfer bool        `json:"internalTransfer"`
		CashCount        *CashCount  `json:"cashCount,omitempty"`
		CreatedAt        time.Time   `json:"createdAt"`
	}

	Configuration struct {
		OrganizationName string           `json:"organizationName"`
		FundPercentages  map[FundType]int `json:"fundPercentages"`
		RentTarget       Money            `json:"rentTarget"`
		RentAmount       Money            `json:"rentAmount"`
	}

	// Statistics is the derived ledger snapshot. It is never stored.
	Statistics struct {
		TotalIncome      Money              `json:"totalIncome"`
		TotalExpenses    Money              `json:"totalExpenses"`
		NetBalance       Money              `json:"netBalance"`
		FundBalances     map[FundType]Money `json:"fundBalances"`
		ChildrenIncome   Money              `json:"childrenIncome"`
		ChildrenExpenses Money              `json:"childrenExpenses"`
	}

	// Report is a saved statistics snapshot.
	Report struct {
		ID          string        `json:"id"`
		GeneratedAt time.Time     `json:"generatedAt"`
		GeneratedBy string        `json:"generatedBy"`
		Statistics  Statistics    `json:"statistics"`
		Config      Configuration `json:"configuration"`
	}
)

var categoryDirections = map[Category][]Direction{
	Tithe:               {Income},
	Offering:            {Income},
	ChildrenMinistry:    {Income, Expense},
	UtilityBill:         {Expense},
	Maintenance:         {Expense},
	SocialAid:           {Expense},
	Rent:                {Expense},
	EmergencyWithdrawal: {Expense},
	RentAllocation:      {Expense},
	Other:               {Income, Expense},
}

// Lowercase description markers that identify historical internal transfers
// recorded before the explicit flag existed.
var transferMarkers = []string{
	"transfer",
	"automatic replenishment",
	"transferência",
	"reposição automática",
}

// Funds lists every fund in display order.
func Funds() []FundType {
	return []FundType{FundRentReserve, FundEmergency, FundUtilities, FundGeneral, FundChildren}
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{Tithe, Offering, ChildrenMinistry, UtilityBill, Maintenance,
		SocialAid, Rent, EmergencyWithdrawal, RentAllocation, Other}
}

func (d Direction) Valid() bool { return d == Income || d == Expense }

func (c Category) Valid() bool {
	_, ok := categoryDirections[c]
	return ok
}

// AllowedFor reports whether the category may be used with the direction.
func (c Category) AllowedFor(d Direction) bool {
	for _, allowed := range categoryDirections[c] {
		if allowed == d {
			return true
		}
	}
	return false
}

// IsKnown reports whether f is one of the five funds. Historical data may
// carry other keys; they are ignored everywhere.
func (f FundType) IsKnown() bool {
	switch f {
	case FundRentReserve, FundEmergency, FundUtilities, FundGeneral, FundChildren:
		return true
	}
	return false
}

var fundLabels = map[FundType]string{
	FundRentReserve: "Rent reserve",
	FundEmergency:   "Emergency",
	FundUtilities:   "Utilities",
	FundGeneral:     "General",
	FundChildren:    "Children",
}

// Label returns the display name of the fund.
func (f FundType) Label() string {
	if l, ok := fundLabels[f]; ok {
		return l
	}
	return string(f)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string { return d.Format(time.DateOnly) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Older rows carry full timestamps; only the calendar day matters.
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clone returns an independent copy.
func (a Allocations) Clone() Allocations {
	if a == nil {
		return nil
	}
	out := make(Allocations, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Total sums the known fund deltas.
func (a Allocations) Total() Money {
	var total Money
	for f, v := range a {
		if f.IsKnown() {
			total = total.Add(v)
		}
	}
	return total
}

// Equal compares known fund deltas, treating missing keys as zero.
func (a Allocations) Equal(b Allocations) bool {
	for _, f := range Funds() {
		if a[f] != b[f] {
			return false
		}
	}
	return true
}

// IsInternalTransfer reports whether the entry moves money between funds
// rather than in or out of the organization.
func (e Entry) IsInternalTransfer() bool {
	if e.InternalTransfer {
		return true
	}
	desc := strings.ToLower(e.Description)
	for _, m := range transferMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

// IsReplenishment reports whether the entry restores the rent reserve after a
// rent payment.
func (e Entry) IsReplenishment() bool {
	desc := strings.ToLower(e.Description)
	return strings.Contains(desc, "automatic replenishment") ||
		strings.Contains(desc, "reposição automática")
}

// Validate checks a new entry before it reaches the engine.
func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		return invalid("description", ErrEmptyDescription)
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return invalid("description", ErrDescriptionTooLong)
	}
	if err := e.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if !e.Direction.Valid() {
		return invalid("direction", ErrInvalidDirection)
	}
	if !e.Category.Valid() {
		return invalid("category", ErrInvalidCategory)
	}
	if !e.Category.AllowedFor(e.Direction) {
		return invalid("category", ErrCategoryDirection)
	}
	if e.Direction == Income && strings.TrimSpace(e.InvoiceRef) != "" {
		return invalid("invoiceRef", ErrInvoiceOnIncome)
	}
	if e.CashCount != nil {
		if e.Direction != Income {
			return invalid("cashCount", ErrCashCountOnExpense)
		}
		if err := e.CashCount.Validate(); err != nil {
			return invalid("cashCount", err)
		}
	}
	return nil
}

// DefaultConfiguration returns the settings used until an administrator saves
// their own.
func DefaultConfiguration() Configuration {
	return Configuration{
		OrganizationName: "Treasury",
		FundPercentages: map[FundType]int{
			FundRentReserve: 40,
			FundEmergency:   10,
			FundUtilities:   20,
			FundGeneral:     30,
		},
		RentTarget: Euros(1350),
		RentAmount: Euros(450),
	}
}

// WithRentAmount sets the monthly rent and the reserve target of three months.
func (c Configuration) WithRentAmount(m Money) Configuration {
	c.RentAmount = m
	c.RentTarget = Money{Cents: m.Cents * 3}
	return c
}

// Percentage returns the configured share of f, zero when unset.
func (c Configuration) Percentage(f FundType) int {
	return c.FundPercentages[f]
}

// PercentageTotal sums the known fund percentages.
func (c Configuration) PercentageTotal() int {
	total := 0
	for f, p := range c.FundPercentages {
		if f.IsKnown() {
			total += p
		}
	}
	return total
}

// Healthy reports whether the percentages sum to 100. Advisory only.
func (c Configuration) Healthy() bool {
	return c.PercentageTotal() == 100
}

func (c Configuration) Validate() error {
	for f, p := range c.FundPercentages {
		if !f.IsKnown() {
			return invalid("fundPercentages."+string(f), ErrInvalidFund)
		}
		if p < 0 || p > 100 {
			return invalid("fundPercentages."+string(f), ErrInvalidPercentage)
		}
	}
	if c.RentTarget.Cents < 0 {
		return invalid("rentTarget", ErrInvalidAmount)
	}
	if c.RentAmount.Cents < 0 {
		return invalid("rentAmount", ErrInvalidAmount)
	}
	return nil
}

// Clone returns a copy with its own percentage map.
func (c Configuration) Clone() Configuration {
	out := c
	out.FundPercentages = make(map[FundType]int, len(c.FundPercentages))
	for k, v := range c.FundPercentages {
		out.FundPercentages[k] = v
	}
	return out
}

// NewStatistics returns a zeroed snapshot with every fund present.
func NewStatistics() Statistics {
	balances := make(map[FundType]Money, 5)
	for _, f := range Funds() {
		balances[f] = Money{}
	}
	return Statistics{FundBalances: balances}
}

// Fund returns the balance of f.
func (s Statistics) Fund(f FundType) Money {
	return s.FundBalances[f]
}

// Available is the balance free for day-to-day spending.
func (s Statistics) Available() Money {
	return s.Fund(FundUtilities).Add(s.Fund(FundGeneral))
}
