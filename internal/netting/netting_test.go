package netting

import (
	"context"
	"testing"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

func bank(label byte) ledgercore.BankId {
	var b ledgercore.BankId
	b[0] = label
	return b
}

func amt(t *testing.T, s string) ledgercore.Amount {
	t.Helper()
	a, err := ledgercore.ParseAmount(s, 2)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return a
}

func obligation(t *testing.T, from, to ledgercore.BankId, ccy ledgercore.Currency, amount string) ledgercore.Obligation {
	t.Helper()
	return ledgercore.Obligation{
		DebtorBank:   from,
		CreditorBank: to,
		Currency:     ccy,
		Amount:       amt(t, amount),
	}
}

// TestNetBilateral reproduces S5: A->B=100, B->A=60, A->C=40, C->B=30,
// expecting net positions A=-80 B=+70 C=+10 and transfers {A->B:70, A->C:10}.
func TestNetBilateral(t *testing.T) {
	a, b, c := bank('A'), bank('B'), bank('C')
	const usd = ledgercore.Currency("USD")

	obligations := []ledgercore.Obligation{
		obligation(t, a, b, usd, "100.00"),
		obligation(t, b, a, usd, "60.00"),
		obligation(t, a, c, usd, "40.00"),
		obligation(t, c, b, usd, "30.00"),
	}

	plan, err := Net(context.Background(), obligations, Liquidity{})
	if err != nil {
		t.Fatalf("Net: %v", err)
	}

	net := plan.PerBankNets[usd]
	wantA, wantB, wantC := amt(t, "-80.00"), amt(t, "70.00"), amt(t, "10.00")
	if net[a].Cmp(wantA) != 0 {
		t.Errorf("net[A] = %s, want %s", net[a], wantA)
	}
	if net[b].Cmp(wantB) != 0 {
		t.Errorf("net[B] = %s, want %s", net[b], wantB)
	}
	if net[c].Cmp(wantC) != 0 {
		t.Errorf("net[C] = %s, want %s", net[c], wantC)
	}

	if len(plan.NetTransfers) != 2 {
		t.Fatalf("len(transfers) = %d, want 2: %+v", len(plan.NetTransfers), plan.NetTransfers)
	}
	byDest := make(map[ledgercore.BankId]ledgercore.Amount)
	for _, tr := range plan.NetTransfers {
		if tr.FromBank != a {
			t.Errorf("unexpected transfer source %x", tr.FromBank)
		}
		byDest[tr.ToBank] = tr.Amount
	}
	if byDest[b].Cmp(amt(t, "70.00")) != 0 {
		t.Errorf("transfer A->B = %s, want 70.00", byDest[b])
	}
	if byDest[c].Cmp(amt(t, "10.00")) != 0 {
		t.Errorf("transfer A->C = %s, want 10.00", byDest[c])
	}

	if len(plan.Unnetted) != 0 {
		t.Errorf("unnetted = %+v, want none (unlimited liquidity)", plan.Unnetted)
	}
}

// TestNetPreservesSumUnderUnlimitedLiquidity is property 5: with no
// liquidity caps, net transfers out of each bank sum to exactly that
// bank's originally-computed net position.
func TestNetPreservesSumUnderUnlimitedLiquidity(t *testing.T) {
	a, b, c, d := bank('A'), bank('B'), bank('C'), bank('D')
	const eur = ledgercore.Currency("EUR")

	obligations := []ledgercore.Obligation{
		obligation(t, a, b, eur, "50.00"),
		obligation(t, b, c, eur, "20.00"),
		obligation(t, c, d, eur, "15.00"),
		obligation(t, d, a, eur, "5.00"),
		obligation(t, a, c, eur, "30.00"),
	}

	plan, err := Net(context.Background(), obligations, Liquidity{})
	if err != nil {
		t.Fatalf("Net: %v", err)
	}

	wantNet := computeNet(obligations, 2)
	gotNet := make(map[ledgercore.BankId]ledgercore.Amount)
	for _, bk := range []ledgercore.BankId{a, b, c, d} {
		gotNet[bk] = ledgercore.Zero(2)
	}
	for _, tr := range plan.NetTransfers {
		gotNet[tr.FromBank] = gotNet[tr.FromBank].Sub(tr.Amount)
		gotNet[tr.ToBank] = gotNet[tr.ToBank].Add(tr.Amount)
	}
	for _, bk := range []ledgercore.BankId{a, b, c, d} {
		if gotNet[bk].Cmp(wantNet[bk]) != 0 {
			t.Errorf("bank %x: transfers net to %s, want %s", bk, gotNet[bk], wantNet[bk])
		}
	}

	// Property 6: at most #banks-1 transfers per currency.
	if len(plan.NetTransfers) > 3 {
		t.Errorf("len(transfers) = %d, want <= 3 (#banks-1)", len(plan.NetTransfers))
	}
}

// TestNetLiquidityCapExcludesSmallestFirst verifies that when a source
// bank's cap binds, the smallest face-value obligations from that bank
// are excluded first and returned as unnetted, and the remaining net
// positions are recomputed from what's left.
func TestNetLiquidityCapExcludesSmallestFirst(t *testing.T) {
	a, b, c := bank('A'), bank('B'), bank('C')
	const usd = ledgercore.Currency("USD")

	obligations := []ledgercore.Obligation{
		obligation(t, a, b, usd, "10.00"),
		obligation(t, a, c, usd, "90.00"),
	}
	// A owes 100 total but can only send 95: the smaller 10.00
	// obligation to B should be dropped, leaving A->C=90 fully netted.
	liquidity := Liquidity{
		a: {usd: amt(t, "95.00")},
	}

	plan, err := Net(context.Background(), obligations, liquidity)
	if err != nil {
		t.Fatalf("Net: %v", err)
	}

	if len(plan.Unnetted) != 1 {
		t.Fatalf("unnetted = %+v, want exactly 1 dropped obligation", plan.Unnetted)
	}
	if plan.Unnetted[0].CreditorBank != b {
		t.Errorf("unnetted obligation creditor = %x, want B (smallest face value)", plan.Unnetted[0].CreditorBank)
	}

	if len(plan.NetTransfers) != 1 {
		t.Fatalf("len(transfers) = %d, want 1", len(plan.NetTransfers))
	}
	tr := plan.NetTransfers[0]
	if tr.FromBank != a || tr.ToBank != c || tr.Amount.Cmp(amt(t, "90.00")) != 0 {
		t.Errorf("transfer = %+v, want A->C 90.00", tr)
	}
}

func TestGrossAndNetTotals(t *testing.T) {
	a, b, c := bank('A'), bank('B'), bank('C')
	const usd = ledgercore.Currency("USD")

	obligations := []ledgercore.Obligation{
		obligation(t, a, b, usd, "100.00"),
		obligation(t, b, a, usd, "60.00"),
		obligation(t, a, c, usd, "40.00"),
		obligation(t, c, b, usd, "30.00"),
	}

	gross := GrossTotal(obligations)
	if gross[usd].Cmp(amt(t, "230.00")) != 0 {
		t.Errorf("gross = %s, want 230.00", gross[usd])
	}

	plan, err := Net(context.Background(), obligations, Liquidity{})
	if err != nil {
		t.Fatalf("Net: %v", err)
	}
	net := NetTotal(plan.NetTransfers)
	if net[usd].Cmp(amt(t, "80.00")) != 0 {
		t.Errorf("net total = %s, want 80.00", net[usd])
	}
}
