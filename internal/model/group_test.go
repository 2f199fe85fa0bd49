package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testGroup() *Group {
	return &Group{
		ID:        "g1",
		CreatedBy: "alice",
		Members: []Membership{
			{UserID: "alice", Status: MemberAccepted, Role: RoleAdmin},
			{UserID: "bob", Status: MemberPending, Role: RoleMember},
			{UserID: "carol", Status: MemberAccepted, Role: RoleMember},
		},
		Expenses: []Expense{
			{ID: "e1", Amount: decimal.NewFromInt(10), Splits: []Split{{UserID: "alice", Share: decimal.NewFromInt(10)}}},
			{ID: "e2", Amount: decimal.NewFromInt(20)},
		},
	}
}

func TestGroup_Roles(t *testing.T) {
	g := testGroup()

	if !g.IsAdmin("alice") {
		t.Error("alice should be admin")
	}
	if g.IsAdmin("carol") {
		t.Error("carol should not be admin")
	}
	if g.IsAcceptedMember("bob") {
		t.Error("pending member should not count as accepted")
	}
	if !g.IsAcceptedMember("carol") {
		t.Error("carol should be accepted")
	}
	if _, ok := g.Member("dave"); ok {
		t.Error("dave should not be a member")
	}
}

func TestGroup_RemoveMember(t *testing.T) {
	g := testGroup()

	if !g.RemoveMember("bob") {
		t.Fatal("expected bob to be removed")
	}
	if g.RemoveMember("bob") {
		t.Error("second removal should report false")
	}
	if len(g.Members) != 2 || g.Members[1].UserID != "carol" {
		t.Errorf("unexpected members after removal: %+v", g.Members)
	}
}

func TestGroup_RemoveExpense(t *testing.T) {
	g := testGroup()

	g.RemoveExpense("missing")
	if len(g.Expenses) != 2 {
		t.Fatalf("removing unknown id changed expenses: %d", len(g.Expenses))
	}

	g.RemoveExpense("e1")
	if len(g.Expenses) != 1 || g.Expenses[0].ID != "e2" {
		t.Errorf("unexpected expenses: %+v", g.Expenses)
	}
}

func TestGroup_CloneIsDeep(t *testing.T) {
	g := testGroup()
	c := g.Clone()

	c.Members[0].Role = RoleMember
	c.Expenses[0].Splits[0].Share = decimal.NewFromInt(1)

	if g.Members[0].Role != RoleAdmin {
		t.Error("clone shares member slice with original")
	}
	if !g.Expenses[0].Splits[0].Share.Equal(decimal.NewFromInt(10)) {
		t.Error("clone shares split slice with original")
	}
}

func TestExpense_RedistributeEqually(t *testing.T) {
	e := &Expense{
		Amount: decimal.NewFromInt(90),
		Splits: []Split{
			{UserID: "a", Share: decimal.NewFromInt(10)},
			{UserID: "b", Share: decimal.NewFromInt(50)},
			{UserID: "c", Share: decimal.NewFromInt(5)},
		},
	}

	e.RedistributeEqually()

	for _, s := range e.Splits {
		if !s.Share.Equal(decimal.NewFromInt(30)) {
			t.Errorf("share for %s = %s, want 30", s.UserID, s.Share)
		}
	}
	if !e.SplitTotal().Equal(decimal.NewFromInt(90)) {
		t.Errorf("split total = %s, want 90", e.SplitTotal())
	}
}

func TestExpense_RedistributeEquallyRounding(t *testing.T) {
	tests := []struct {
		amount string
		n      int
		want   string
	}{
		{"10", 4, "2.5"},
		{"0.04", 4, "0.01"},
		{"100", 3, "33.33"},
		{"0.10", 4, "0.03"},
		{"2", 3, "0.67"},
	}

	for _, test := range tests {
		t.Run(test.amount, func(t *testing.T) {
			e := &Expense{Amount: decimal.RequireFromString(test.amount), Splits: make([]Split, test.n)}
			e.RedistributeEqually()
			for _, s := range e.Splits {
				if !s.Share.Equal(decimal.RequireFromString(test.want)) {
					t.Fatalf("share = %s, want %s", s.Share, test.want)
				}
				if !ValidMoney(s.Share) {
					t.Fatalf("share %s does not fit the money column", s.Share)
				}
			}
		})
	}
}

func TestValidMoney(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"12.5", true},
		{"12.50", true},
		{"12.500", true},
		{"-7.25", true},
		{"999999999999.99", true},
		{"12.505", false},
		{"0.004", false},
		{"1000000000000", false},
		{"-1000000000000", false},
	}

	for _, test := range tests {
		t.Run(test.value, func(t *testing.T) {
			if got := ValidMoney(decimal.RequireFromString(test.value)); got != test.want {
				t.Fatalf("ValidMoney(%s) = %v, want %v", test.value, got, test.want)
			}
		})
	}
}

func TestMemberStatus_IsResponse(t *testing.T) {
	testCases := []struct {
		status MemberStatus
		want   bool
	}{
		{MemberAccepted, true},
		{MemberRejected, true},
		{MemberPending, false},
		{MemberStatus("maybe"), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.IsResponse(); got != tc.want {
				t.Errorf("IsResponse() = %v, want %v", got, tc.want)
			}
		})
	}
}
