package permission

import (
	"reflect"
	"testing"

	"github.com/backkem/txpermissions/pkg/ledger"
)

func TestMerge(t *testing.T) {
	if got := Merge(nil, nil); got != nil {
		t.Errorf("Merge(nil, nil) = %v, want nil", got)
	}

	allow := []ledger.TypeKey{{Type: 1, Group: 1}}
	deny := []ledger.TypeKey{{Type: 2, Group: 1}, {Type: 3, Group: 1}}
	l := Merge(allow, deny)

	if len(l) != 3 {
		t.Fatalf("len(Merge()) = %d, want 3", len(l))
	}
	if l[0].Kind != Allow || l[1].Kind != Deny || l[2].Kind != Deny {
		t.Errorf("Merge() kinds = %v %v %v, want allow deny deny", l[0].Kind, l[1].Kind, l[2].Kind)
	}
	if !reflect.DeepEqual(l.Allow(), allow) {
		t.Errorf("Allow() = %v, want %v", l.Allow(), allow)
	}
	if !reflect.DeepEqual(l.Deny(), deny) {
		t.Errorf("Deny() = %v, want %v", l.Deny(), deny)
	}
}

func TestList_Find(t *testing.T) {
	l := List{NewAllow(1, 9002), NewDeny(5, 1)}

	p, ok := l.Find(ledger.TypeKey{Type: 5, Group: 1})
	if !ok || p.Kind != Deny {
		t.Errorf("Find(5/1) = %v, %v; want deny, true", p, ok)
	}

	if _, ok := l.Find(ledger.TypeKey{Type: 5, Group: 9002}); ok {
		t.Error("Find(9002/5) should not match a different type group")
	}
}

func TestGroup_Clone(t *testing.T) {
	g := &Group{Name: "g1", Priority: 3, Permissions: List{NewAllow(1, 1)}}
	c := g.Clone()
	c.Permissions[0].Kind = Deny
	c.Name = "other"

	if g.Permissions[0].Kind != Allow || g.Name != "g1" {
		t.Error("Clone() should not share state with the original")
	}
}

func TestUserPermissions_CloneAndInGroup(t *testing.T) {
	u := &UserPermissions{Groups: []string{"a", "b"}}
	c := u.Clone()
	c.Groups[0] = "z"

	if !u.InGroup("a") || u.InGroup("z") {
		t.Error("Clone() should not share the groups slice")
	}
	if c.Permissions != nil {
		t.Error("Clone() of nil permissions should stay nil")
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Allow, "allow"},
		{Deny, "deny"},
		{Kind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
