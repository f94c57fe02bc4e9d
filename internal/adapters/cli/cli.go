package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"factory-erp/internal/app"
	"factory-erp/internal/core"
)

// cliUser is recorded in the audit log for actions run from the command line.
const cliUser = "cli"

const Usage = `Usage: app <command> [args]

Commands:
  allocate            re-run stock allocation over open orders
  stock               print stock levels
  orders [status]     list orders, optionally filtered by status
  needs               print production needs
  suggest             record production suggestions for current needs
  pull                download the spreadsheet and apply it
  flush               push pending outbox entries once
  status              print sync status as JSON
  logs [n]            print the n most recent audit entries (default 20)`

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", Usage)
	}

	switch args[0] {
	case "allocate", "alloc":
		n, err := svc.RunAllocation(ctx, cliUser)
		if err != nil {
			return fmt.Errorf("allocation failed: %w", err)
		}
		fmt.Fprintf(out, "%d order(s) promoted to %s.\n", n, core.OrderStatusReady)

	case "stock":
		result, err := svc.GetStockLevels(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stock levels: %w", err)
		}
		printStock(out, result)

	case "orders":
		var status *core.OrderStatus
		if len(args) > 1 {
			st := core.OrderStatus(strings.Join(args[1:], " "))
			if !st.Valid() {
				return fmt.Errorf("unknown status %q", st)
			}
			status = &st
		}
		result, err := svc.ListOrders(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}
		printOrders(out, result.Orders)

	case "needs":
		needs, err := svc.ProductionNeeds(ctx)
		if err != nil {
			return fmt.Errorf("failed to compute needs: %w", err)
		}
		printNeeds(out, needs)

	case "suggest":
		created, err := svc.SuggestProduction(ctx, cliUser)
		if err != nil {
			return fmt.Errorf("suggestion failed: %w", err)
		}
		for _, sg := range created {
			fmt.Fprintf(out, "  %-12s %6d  %-12s %s\n", sg.ProductID, sg.SuggestedQuantity, sg.Priority, sg.Reason)
		}
		fmt.Fprintf(out, "%d suggestion(s) recorded.\n", len(created))

	case "pull":
		res, err := svc.PullNow(ctx)
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		fmt.Fprintf(out, "Pulled at %s, %d order(s) promoted, %d tombstone(s) pruned.\n",
			res.At.Format("2006-01-02 15:04:05"), res.Promoted, res.Pruned)

	case "flush":
		n, err := svc.FlushOutbox(ctx)
		if err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}
		fmt.Fprintf(out, "%d change(s) delivered.\n", n)

	case "status":
		st, err := svc.SyncStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to read sync status: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)

	case "logs":
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("logs: %q is not a positive number", args[1])
			}
			limit = n
		}
		entries, err := svc.AuditTrail(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to read audit trail: %w", err)
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-10s %-8s %-14s %-14s %s\n",
				e.Timestamp.Format("2006-01-02 15:04"), e.User, e.Action, e.TableName, e.RecordID, e.Notes)
		}

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], Usage)
	}
	return nil
}

func printStock(out io.Writer, result *app.StockResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  %-10s %-28s %8s %8s %8s %5s\n", "ID", "PRODUCT", "ON HAND", "COMMIT", "AVAIL", "MIN")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, l := range result.Levels {
		flag := ""
		if l.LowStock {
			flag = " !"
		}
		fmt.Fprintf(out, "  %-10s %-28s %8d %8d %8d %5d%s\n", l.ProductID, l.ProductName, l.OnHand, l.Committed, l.Available, l.MinimumStock, flag)
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  %d product(s) at or below minimum stock\n", result.LowStock)
}

func printOrders(out io.Writer, orders []core.Order) {
	fmt.Fprintf(out, "%-8s %-14s %-12s %-12s\n", "NUMBER", "ID", "CUSTOMER", "STATUS")
	fmt.Fprintln(out, strings.Repeat("-", 50))
	for _, o := range orders {
		fmt.Fprintf(out, "%-8d %-14s %-12s %-12s\n", o.OrderNumber, o.ID, o.CustomerID, o.Status)
	}
}

func printNeeds(out io.Writer, needs []core.ProductionNeed) {
	fmt.Fprintf(out, "%-10s %-28s %7s %7s %7s %7s\n", "ID", "PRODUCT", "DEMAND", "FREE", "INCOM", "MAKE")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, n := range needs {
		fmt.Fprintf(out, "%-10s %-28s %7d %7d %7d %7d\n", n.ProductID, n.ProductName, n.OpenDemand, n.FreeStock, n.Incoming, n.TotalQuantity)
	}
}
