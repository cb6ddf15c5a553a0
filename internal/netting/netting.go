// Package netting computes multilateral net settlement plans: given a
// set of interbank payment obligations for one settlement window, it
// reduces them to the minimum number of interbank transfers per
// currency, capped by each bank's available liquidity. The algorithm is
// a pure function of its input — no wallclock, no I/O — grounded on the
// teacher's per-shard-independent, errgroup-fanned-out processing idiom
// (internal/peermanagement/overlay.go's errgroup.WithContext use),
// generalized from peer-connection fan-out to per-currency netting.
package netting

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// Liquidity is the available-to-send balance per bank, per currency,
// snapshotted at window freeze and not mutated during the window.
type Liquidity map[ledgercore.BankId]map[ledgercore.Currency]ledgercore.Amount

func (l Liquidity) cap(bank ledgercore.BankId, ccy ledgercore.Currency, scale int32) (ledgercore.Amount, bool) {
	byCcy, ok := l[bank]
	if !ok {
		return ledgercore.Amount{}, false
	}
	amt, ok := byCcy[ccy]
	if !ok {
		return ledgercore.Amount{}, false
	}
	return amt, true
}

// Plan is the output of Net: the transfers to execute, each bank's final
// net position per currency (after any liquidity-driven exclusions), and
// the obligations that could not be included this window.
type Plan struct {
	NetTransfers []ledgercore.NetTransfer
	PerBankNets  map[ledgercore.Currency]map[ledgercore.BankId]ledgercore.Amount
	Unnetted     []ledgercore.Obligation
}

// GrossTotal returns the sum of every obligation's amount, per currency
// — the numerator of the gross-to-net reduction ratio.
func GrossTotal(obligations []ledgercore.Obligation) map[ledgercore.Currency]ledgercore.Amount {
	totals := make(map[ledgercore.Currency]ledgercore.Amount)
	for _, o := range obligations {
		totals[o.Currency] = addInto(totals, o.Currency, o.Amount)
	}
	return totals
}

// NetTotal returns the sum of every net transfer's amount, per currency
// — the denominator of the gross-to-net reduction ratio.
func NetTotal(transfers []ledgercore.NetTransfer) map[ledgercore.Currency]ledgercore.Amount {
	totals := make(map[ledgercore.Currency]ledgercore.Amount)
	for _, t := range transfers {
		totals[t.Currency] = addInto(totals, t.Currency, t.Amount)
	}
	return totals
}

func addInto(m map[ledgercore.Currency]ledgercore.Amount, ccy ledgercore.Currency, amt ledgercore.Amount) ledgercore.Amount {
	if existing, ok := m[ccy]; ok {
		return existing.Add(amt)
	}
	return amt
}

// Net partitions obligations by currency and nets each currency
// independently and concurrently. A failure netting one currency
// aborts the whole plan; per-currency netting never returns an error, so
// the returned error is always nil. A bank with no entry in liquidity is
// not capped.
func Net(ctx context.Context, obligations []ledgercore.Obligation, liquidity Liquidity) (Plan, error) {
	byCurrency := make(map[ledgercore.Currency][]ledgercore.Obligation)
	var currencies []ledgercore.Currency
	for _, o := range obligations {
		if _, ok := byCurrency[o.Currency]; !ok {
			currencies = append(currencies, o.Currency)
		}
		byCurrency[o.Currency] = append(byCurrency[o.Currency], o)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	results := make([]currencyResult, len(currencies))

	g, _ := errgroup.WithContext(ctx)
	for i, ccy := range currencies {
		i, ccy := i, ccy
		g.Go(func() error {
			results[i] = netCurrency(ccy, byCurrency[ccy], liquidity)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Plan{}, err
	}

	plan := Plan{PerBankNets: make(map[ledgercore.Currency]map[ledgercore.BankId]ledgercore.Amount)}
	for _, r := range results {
		plan.NetTransfers = append(plan.NetTransfers, r.transfers...)
		plan.Unnetted = append(plan.Unnetted, r.unnetted...)
		plan.PerBankNets[r.currency] = r.perBankNet
	}
	return plan, nil
}

type currencyResult struct {
	currency   ledgercore.Currency
	transfers  []ledgercore.NetTransfer
	perBankNet map[ledgercore.BankId]ledgercore.Amount
	unnetted   []ledgercore.Obligation
}

// netCurrency nets one currency's obligations: drop liquidity-excluded
// obligations (smallest face value first) until every source bank's
// outflow fits its cap, then greedily pair the largest remaining source
// with the largest remaining sink until every position is zero.
func netCurrency(ccy ledgercore.Currency, obligations []ledgercore.Obligation, liquidity Liquidity) currencyResult {
	scale := obligations[0].Amount.Scale()
	pool := append([]ledgercore.Obligation(nil), obligations...)

	var unnetted []ledgercore.Obligation
	for {
		net := computeNet(pool, scale)
		bank, excess, ok := firstLiquidityBreach(net, ccy, liquidity)
		if !ok {
			break
		}
		pool, unnetted = dropSmallestFor(pool, bank, excess, unnetted)
	}

	net := computeNet(pool, scale)
	transfers := greedyPair(ccy, net)

	return currencyResult{currency: ccy, transfers: transfers, perBankNet: net, unnetted: unnetted}
}

// computeNet returns each bank's signed net position: negative means the
// bank owes money overall (a source), positive means it is owed (a
// sink). The sum over all banks is always exactly zero by construction.
func computeNet(obligations []ledgercore.Obligation, scale int32) map[ledgercore.BankId]ledgercore.Amount {
	net := make(map[ledgercore.BankId]ledgercore.Amount)
	get := func(b ledgercore.BankId) ledgercore.Amount {
		if v, ok := net[b]; ok {
			return v
		}
		return ledgercore.Zero(scale)
	}
	for _, o := range obligations {
		net[o.DebtorBank] = get(o.DebtorBank).Sub(o.Amount)
		net[o.CreditorBank] = get(o.CreditorBank).Add(o.Amount)
	}
	return net
}

// firstLiquidityBreach returns the first bank (in deterministic order)
// whose required outflow exceeds its liquidity cap for this currency,
// and by how much.
func firstLiquidityBreach(net map[ledgercore.BankId]ledgercore.Amount, ccy ledgercore.Currency, liquidity Liquidity) (ledgercore.BankId, ledgercore.Amount, bool) {
	banks := sortedBanks(net)
	for _, b := range banks {
		pos := net[b]
		if !pos.IsNegative() {
			continue
		}
		required := pos.Neg()
		cap, ok := liquidity.cap(b, ccy, pos.Scale())
		if !ok {
			continue // no liquidity entry means unconstrained
		}
		if required.Cmp(cap) > 0 {
			return b, required.Sub(cap), true
		}
	}
	return ledgercore.BankId{}, ledgercore.Amount{}, false
}

// dropSmallestFor removes obligations where bank is the debtor, smallest
// amount first, until the bank's total owed (within pool) falls within
// its liquidity cap; dropped obligations are appended to unnetted.
func dropSmallestFor(pool []ledgercore.Obligation, bank ledgercore.BankId, excess ledgercore.Amount, unnetted []ledgercore.Obligation) ([]ledgercore.Obligation, []ledgercore.Obligation) {
	var candidates []int
	for i, o := range pool {
		if o.DebtorBank == bank {
			candidates = append(candidates, i)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return pool[candidates[i]].Amount.Cmp(pool[candidates[j]].Amount) < 0
	})

	dropped := make(map[int]bool)
	remaining := excess
	for _, idx := range candidates {
		if !remaining.IsPositive() {
			break
		}
		dropped[idx] = true
		remaining = remaining.Sub(pool[idx].Amount)
	}

	var kept []ledgercore.Obligation
	for i, o := range pool {
		if dropped[i] {
			unnetted = append(unnetted, o)
		} else {
			kept = append(kept, o)
		}
	}
	return kept, unnetted
}

// greedyPair repeatedly transfers between the largest-remaining source
// and largest-remaining sink until every net position is exhausted. This
// yields at most #banks-1 transfers per currency.
func greedyPair(ccy ledgercore.Currency, net map[ledgercore.BankId]ledgercore.Amount) []ledgercore.NetTransfer {
	remaining := make(map[ledgercore.BankId]ledgercore.Amount, len(net))
	for b, v := range net {
		remaining[b] = v
	}

	var transfers []ledgercore.NetTransfer
	for {
		src, srcAmt, hasSrc := largestSource(remaining)
		snk, snkAmt, hasSnk := largestSink(remaining)
		if !hasSrc || !hasSnk {
			break
		}

		transferAmt := srcAmt
		if snkAmt.Cmp(transferAmt) < 0 {
			transferAmt = snkAmt
		}
		if !transferAmt.IsPositive() {
			break
		}

		transfers = append(transfers, ledgercore.NetTransfer{
			FromBank: src,
			ToBank:   snk,
			Currency: ccy,
			Amount:   transferAmt,
			Status:   ledgercore.TransferPending,
		})

		remaining[src] = remaining[src].Add(transferAmt)
		remaining[snk] = remaining[snk].Sub(transferAmt)
		if remaining[src].IsZero() {
			delete(remaining, src)
		}
		if remaining[snk].IsZero() {
			delete(remaining, snk)
		}
	}
	return transfers
}

func largestSource(net map[ledgercore.BankId]ledgercore.Amount) (ledgercore.BankId, ledgercore.Amount, bool) {
	var best ledgercore.BankId
	var bestAbs ledgercore.Amount
	found := false
	for _, b := range sortedBanks(net) {
		v := net[b]
		if !v.IsNegative() {
			continue
		}
		abs := v.Neg()
		if !found || abs.Cmp(bestAbs) > 0 {
			best, bestAbs, found = b, abs, true
		}
	}
	return best, bestAbs, found
}

func largestSink(net map[ledgercore.BankId]ledgercore.Amount) (ledgercore.BankId, ledgercore.Amount, bool) {
	var best ledgercore.BankId
	var bestAmt ledgercore.Amount
	found := false
	for _, b := range sortedBanks(net) {
		v := net[b]
		if !v.IsPositive() {
			continue
		}
		if !found || v.Cmp(bestAmt) > 0 {
			best, bestAmt, found = b, v, true
		}
	}
	return best, bestAmt, found
}

// sortedBanks returns net's keys in a fixed deterministic order so
// greedy tie-breaking never depends on Go's randomized map iteration.
func sortedBanks(net map[ledgercore.BankId]ledgercore.Amount) []ledgercore.BankId {
	banks := make([]ledgercore.BankId, 0, len(net))
	for b := range net {
		banks = append(banks, b)
	}
	sort.Slice(banks, func(i, j int) bool {
		return string(banks[i][:]) < string(banks[j][:])
	})
	return banks
}
