package main

import (
	"github.com/alecthomas/kong"
)

var cli struct {
	Globals
	Commands
}

// Commands lists every subcommand.
type Commands struct {
	Stats    StatsCmd    `cmd:"" help:"Show totals, category balances and the future breakdown."`
	Explain  ExplainCmd  `cmd:"" help:"Break total invested down into cash and self-funded buys."`
	Events   EventsCmd   `cmd:"" help:"Dump the replayed investment events."`
	Holdings HoldingsCmd `cmd:"" help:"List holdings with market value and P/L."`
	Goals    GoalsCmd    `cmd:"" help:"Show savings goal progress."`
	Risk     RiskCmd     `cmd:"" help:"Show exposure per risk level."`
	Vesting  VestingCmd  `cmd:"" help:"Show vesting schedules."`
	Simulate SimulateCmd `cmd:"" help:"Simulate selling everything at a multiple of total invested."`

	AddMoney    AddMoneyCmd    `cmd:"" help:"Record money coming in and split it across categories."`
	AddExpense  AddExpenseCmd  `cmd:"" help:"Record an expense."`
	AddGoal     AddGoalCmd     `cmd:"" help:"Create a savings goal."`
	Buy         BuyCmd         `cmd:"" help:"Record a purchase."`
	Sell        SellCmd        `cmd:"" help:"Record a sale."`
	EditHolding EditHoldingCmd `cmd:"" help:"Correct a holding or its asset by hand."`
	DeleteAsset DeleteAssetCmd `cmd:"" help:"Delete an asset with its holding and history."`

	Repair     RepairCmd     `cmd:"" help:"Consolidate buy history and delete ghost assets."`
	Refresh    RefreshCmd    `cmd:"" help:"Refresh cached market prices."`
	ExportBQ   ExportBQCmd   `cmd:"" name:"export-bq" help:"Export a snapshot and holdings to BigQuery."`
	History    HistoryCmd    `cmd:"" help:"List snapshots exported to BigQuery."`
	Backup     BackupCmd     `cmd:"" help:"Upload a full JSON dump to Cloud Storage."`
	BackupShow BackupShowCmd `cmd:"" help:"Summarize a backup stored in Cloud Storage."`
	Migrate    MigrateCmd    `cmd:"" help:"Create or update the local database schema."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("wealth"),
		kong.Description("Track cash flow, holdings and what has really been invested."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
