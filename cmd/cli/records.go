package main

import (
	"strings"

	"github.com/dvloznov/wealth-tracker/internal/cashflow"
	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/dvloznov/wealth-tracker/internal/holdings"
	"github.com/dvloznov/wealth-tracker/internal/report"
)

type AddMoneyCmd struct {
	Amount      string   `required:"" help:"Amount received."`
	Date        string   `help:"Effective date (defaults to now)."`
	Description string   `help:"Free text description."`
	Alloc       []string `help:"Category allocation as category=amount. Repeatable."`
	GoalAlloc   []string `name:"goal-alloc" help:"Savings allocation linked to a goal as goal-id=amount. Repeatable."`
}

func (c *AddMoneyCmd) Run(g *Globals) error {
	amount, err := parseAmount("amount", c.Amount)
	if err != nil {
		return err
	}
	date, err := parseDate(c.Date)
	if err != nil {
		return err
	}
	allocs, err := parseAllocations(c.Alloc, c.GoalAlloc)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.cashflow().AddMoney(a.context(), cashflow.MoneyRequest{
		Amount:      amount,
		Date:        date,
		Description: c.Description,
		Allocations: allocs,
	})
	if err != nil {
		return err
	}
	return a.emitf(res, "recorded %s (%s), unallocated %s",
		report.Money(res.Transaction.Amount), res.Transaction.ID, report.Money(res.Unallocated))
}

type AddExpenseCmd struct {
	Amount      string `required:"" help:"Amount spent."`
	Description string `required:"" help:"What it was for."`
	Date        string `help:"Date of the expense (defaults to now)."`
	Category    string `required:"" help:"Spending category."`
}

func (c *AddExpenseCmd) Run(g *Globals) error {
	amount, err := parseAmount("amount", c.Amount)
	if err != nil {
		return err
	}
	date, err := parseDate(c.Date)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.cashflow().AddExpense(a.context(), cashflow.ExpenseRequest{
		Amount:      amount,
		Description: c.Description,
		Date:        date,
		Category:    c.Category,
	})
	if err != nil {
		return err
	}
	return a.emitf(e, "recorded expense %q %s (%s)", e.Description, report.Money(e.Amount), e.ID)
}

type AddGoalCmd struct {
	Name     string `arg:"" help:"Goal name."`
	Target   string `required:"" help:"Target amount."`
	Deadline string `help:"Optional deadline."`
	Color    string `help:"Display color."`
}

func (c *AddGoalCmd) Run(g *Globals) error {
	target, err := parseAmount("target", c.Target)
	if err != nil {
		return err
	}
	deadline, err := parseDate(c.Deadline)
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	goal, err := a.cashflow().AddGoal(a.context(), cashflow.GoalRequest{
		Name:     c.Name,
		Target:   target,
		Deadline: deadline,
		Color:    c.Color,
	})
	if err != nil {
		return err
	}
	return a.emitf(goal, "created goal %q (%s)", goal.Name, goal.ID)
}

type BuyCmd struct {
	Ticker        string `arg:"" help:"Ticker or symbol."`
	Type          string `help:"Asset type (CRYPTO, STOCK, ETF, STARTUP or COLLECTIBLE), required when the asset is new."`
	Quantity      string `required:"" help:"Units bought."`
	Price         string `required:"" help:"Price per unit."`
	Date          string `help:"Trade date (defaults to now)."`
	Name          string `help:"Asset name, used when the asset is new."`
	Risk          string `help:"Risk level (LOW, MEDIUM, HIGH or EXTREME), used when the asset is new."`
	VestingStart  string `name:"vesting-start" help:"Vesting start, used when the asset is new."`
	VestingMonths int    `name:"vesting-months" help:"Vesting length in months, used when the asset is new."`
}

func (c *BuyCmd) Run(g *Globals) error {
	qty, err := parseAmount("quantity", c.Quantity)
	if err != nil {
		return err
	}
	price, err := parseAmount("price", c.Price)
	if err != nil {
		return err
	}
	date, err := parseDate(c.Date)
	if err != nil {
		return err
	}
	vestingStart, err := parseDate(c.VestingStart)
	if err != nil {
		return err
	}
	risk, err := parseRisk(c.Risk)
	if err != nil {
		return err
	}
	var assetType domain.AssetType
	if strings.TrimSpace(c.Type) != "" {
		types, err := parseAssetTypes([]string{c.Type})
		if err != nil {
			return err
		}
		assetType = types[0]
	}
	req := holdings.BuyRequest{
		Ticker:       c.Ticker,
		Type:         assetType,
		Quantity:     qty,
		Price:        price,
		Date:         date,
		Name:         c.Name,
		RiskLevel:    risk,
		VestingStart: vestingStart,
	}
	if c.VestingMonths > 0 {
		req.VestingMonths = &c.VestingMonths
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ledger().Buy(a.context(), req)
	if err != nil {
		return err
	}
	return a.emitf(res, "bought %s %s @ %s, holding %s @ %s",
		res.Transaction.Quantity, res.Asset.Ticker, report.Money(res.Transaction.PricePerUnit),
		res.Holding.Quantity, report.Money(res.Holding.AvgCost))
}

type SellCmd struct {
	Ticker   string `arg:"" help:"Ticker or symbol."`
	Type     string `help:"Asset type, to resolve bare crypto symbols."`
	Quantity string `required:"" help:"Units sold."`
	Price    string `required:"" help:"Price per unit."`
	Date     string `help:"Trade date (defaults to now)."`
}

func (c *SellCmd) Run(g *Globals) error {
	qty, err := parseAmount("quantity", c.Quantity)
	if err != nil {
		return err
	}
	price, err := parseAmount("price", c.Price)
	if err != nil {
		return err
	}
	date, err := parseDate(c.Date)
	if err != nil {
		return err
	}
	var assetType domain.AssetType
	if c.Type != "" {
		types, err := parseAssetTypes([]string{c.Type})
		if err != nil {
			return err
		}
		assetType = types[0]
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ledger().Sell(a.context(), holdings.SellRequest{
		Ticker:   c.Ticker,
		Type:     assetType,
		Quantity: qty,
		Price:    price,
		Date:     date,
	})
	if err != nil {
		return err
	}
	if res.Holding == nil {
		return a.emitf(res, "sold %s %s, position closed", res.Transaction.Quantity, res.Asset.Ticker)
	}
	return a.emitf(res, "sold %s %s, %s left", res.Transaction.Quantity, res.Asset.Ticker, res.Holding.Quantity)
}

type EditHoldingCmd struct {
	Ticker        string `arg:"" help:"Ticker of the holding."`
	Quantity      string `help:"New quantity."`
	AvgCost       string `name:"avg-cost" help:"New average cost per unit."`
	Price         string `help:"New cached price."`
	Name          string `help:"New asset name."`
	Risk          string `help:"New risk level (LOW, MEDIUM, HIGH or EXTREME)."`
	VestingStart  string `name:"vesting-start" help:"New vesting start."`
	VestingMonths int    `name:"vesting-months" help:"New vesting length in months." default:"-1"`
}

func (c *EditHoldingCmd) request() (holdings.EditRequest, error) {
	req := holdings.EditRequest{Ticker: c.Ticker}
	var err error
	if req.Quantity, err = parseOptionalAmount("quantity", c.Quantity); err != nil {
		return req, err
	}
	if req.AvgCost, err = parseOptionalAmount("avg cost", c.AvgCost); err != nil {
		return req, err
	}
	if req.CurrentPrice, err = parseOptionalAmount("price", c.Price); err != nil {
		return req, err
	}
	if req.VestingStart, err = parseDate(c.VestingStart); err != nil {
		return req, err
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		req.Name = &name
	}
	if c.Risk != "" {
		risk, err := parseRisk(c.Risk)
		if err != nil {
			return req, err
		}
		req.RiskLevel = &risk
	}
	if c.VestingMonths >= 0 {
		months := c.VestingMonths
		req.VestingMonths = &months
	}
	return req, nil
}

func (c *EditHoldingCmd) Run(g *Globals) error {
	req, err := c.request()
	if err != nil {
		return err
	}

	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := a.ledger().Edit(a.context(), req)
	if err != nil {
		return err
	}
	return a.emitf(h, "%s now %s @ %s", c.Ticker, h.Quantity, report.Money(h.AvgCost))
}

type DeleteAssetCmd struct {
	Ticker string `arg:"" help:"Ticker of the asset to delete."`
}

func (c *DeleteAssetCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger().DeleteAsset(a.context(), c.Ticker); err != nil {
		return err
	}
	return a.emitf(map[string]string{"deleted": c.Ticker}, "deleted %s", c.Ticker)
}
