package catalog

import (
	"errors"
	"testing"

	"food-order-system/internal/domain"
	"food-order-system/internal/stock"
)

func item(id int64, stockN int) domain.MenuItem {
	return domain.MenuItem{ID: id, Stock: stockN}
}

func TestExpand_MergesItemsAndCombos(t *testing.T) {
	t.Parallel()

	combo := domain.Combo{
		ID: 7,
		Items: []domain.ComboItem{
			{MenuItem: item(1, 10), Quantity: 2},
			{MenuItem: item(2, 10), Quantity: 1},
		},
	}
	lines := []domain.CartLine{
		{Item: &domain.ItemSelection{Item: item(1, 10)}, Quantity: 3},
		{Combo: &domain.ComboSelection{Combo: combo}, Quantity: 2},
	}

	req, err := Expand(lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Item 1: 3 direct + 2*2 from combo = 7; item 2: 2*1 = 2.
	want := stock.Requirements{1: 7, 2: 2}
	if len(req) != len(want) {
		t.Fatalf("requirements = %v, want %v", req, want)
	}
	for id, n := range want {
		if req[id] != n {
			t.Errorf("item %d: got %d, want %d", id, req[id], n)
		}
	}
}

func TestExpand_RejectsInvalidLine(t *testing.T) {
	t.Parallel()

	_, err := Expand([]domain.CartLine{{Quantity: 1}})
	if !errors.Is(err, domain.ErrLineTarget) {
		t.Fatalf("expected ErrLineTarget, got %v", err)
	}

	_, err = Expand([]domain.CartLine{{
		Item:     &domain.ItemSelection{Item: item(1, 5)},
		Quantity: 0,
	}})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// A combo with no constituents would reserve nothing and total 0.00;
// checkout must refuse it.
func TestExpand_RejectsEmptyCombo(t *testing.T) {
	t.Parallel()

	empty := domain.Combo{ID: 7, Name: "Ghost Set"}
	_, err := Expand([]domain.CartLine{
		{Combo: &domain.ComboSelection{Combo: empty}, Quantity: 1},
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestComboStock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		combo domain.Combo
		want  int
	}{
		{
			"single constituent",
			domain.Combo{Items: []domain.ComboItem{{MenuItem: item(1, 10), Quantity: 2}}},
			5,
		},
		{
			"limited by scarcest constituent",
			domain.Combo{Items: []domain.ComboItem{
				{MenuItem: item(1, 10), Quantity: 1},
				{MenuItem: item(2, 3), Quantity: 2},
			}},
			1,
		},
		{
			"zero stock constituent",
			domain.Combo{Items: []domain.ComboItem{
				{MenuItem: item(1, 10), Quantity: 1},
				{MenuItem: item(2, 0), Quantity: 1},
			}},
			0,
		},
		{"empty combo", domain.Combo{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComboStock(tt.combo); got != tt.want {
				t.Fatalf("ComboStock = %d, want %d", got, tt.want)
			}
		})
	}
}

// Buying one combo of {A x2} from stock 10 leaves item stock 8 and
// derived combo stock 4; restocking returns both to 10 and 5.
func TestComboStock_TracksConstituentStock(t *testing.T) {
	t.Parallel()

	a := item(1, 10)
	combo := domain.Combo{Items: []domain.ComboItem{{MenuItem: a, Quantity: 2}}}
	if got := ComboStock(combo); got != 5 {
		t.Fatalf("initial combo stock = %d, want 5", got)
	}

	combo.Items[0].MenuItem.Stock = 8
	if got := ComboStock(combo); got != 4 {
		t.Fatalf("after purchase combo stock = %d, want 4", got)
	}

	combo.Items[0].MenuItem.Stock = 10
	if got := ComboStock(combo); got != 5 {
		t.Fatalf("after restock combo stock = %d, want 5", got)
	}
}

func TestComboAvailable(t *testing.T) {
	t.Parallel()

	ok := domain.Combo{Items: []domain.ComboItem{{MenuItem: item(1, 2), Quantity: 2}}}
	if !ComboAvailable(ok) {
		t.Fatal("expected combo to be available")
	}
	short := domain.Combo{Items: []domain.ComboItem{{MenuItem: item(1, 1), Quantity: 2}}}
	if ComboAvailable(short) {
		t.Fatal("expected combo to be unavailable")
	}
}
