package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

func TestDocumentShareScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	reader, _ := f.account(t, "b@x.com", "B")

	doc := f.document(t, owner, map[string]any{"title": "Plan", "body": "Ship it"})
	if doc.OwnerID != owner.UserID || len(doc.SharedWith) != 0 {
		t.Fatalf("Create() = %+v", doc)
	}

	_, err := f.docs.Get(ctx, reader, doc.ID)
	wantErr(t, err, model.ErrForbidden)

	shares, err := f.docs.Share(ctx, owner, doc.ID, reader.UserID)
	if err != nil {
		t.Fatalf("Share() unexpected error: %v", err)
	}
	if !slices.Equal(shares.SharedWith, []string{reader.UserID}) {
		t.Errorf("Share() = %v", shares.SharedWith)
	}

	got, err := f.docs.Get(ctx, reader, doc.ID)
	if err != nil {
		t.Fatalf("Get() as recipient unexpected error: %v", err)
	}
	if got.Content["title"] != "Plan" {
		t.Errorf("Get().Content = %v", got.Content)
	}

	_, err = f.docs.Update(ctx, reader, doc.ID, model.DocumentRequest{Content: map[string]any{"title": "Mine"}})
	wantErr(t, err, model.ErrForbidden)

	_, err = f.docs.Unshare(ctx, owner, doc.ID, reader.UserID)
	if err != nil {
		t.Fatalf("Unshare() unexpected error: %v", err)
	}
	_, err = f.docs.Get(ctx, reader, doc.ID)
	wantErr(t, err, model.ErrForbidden)
}

func TestShareIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	reader, _ := f.account(t, "b@x.com", "B")
	doc := f.document(t, owner, nil)

	for range 2 {
		shares, err := f.docs.Share(ctx, owner, doc.ID, reader.UserID)
		if err != nil {
			t.Fatalf("Share() unexpected error: %v", err)
		}
		if len(shares.SharedWith) != 1 {
			t.Errorf("Share() = %v, want one recipient", shares.SharedWith)
		}
	}

	for range 2 {
		shares, err := f.docs.Unshare(ctx, owner, doc.ID, reader.UserID)
		if err != nil {
			t.Fatalf("Unshare() unexpected error: %v", err)
		}
		if len(shares.SharedWith) != 0 {
			t.Errorf("Unshare() = %v, want none", shares.SharedWith)
		}
	}
}

func TestShareErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	reader, _ := f.account(t, "b@x.com", "B")
	doc := f.document(t, owner, nil)

	_, err := f.docs.Share(ctx, owner, doc.ID, owner.UserID)
	wantErr(t, err, model.ErrSelfShare)

	_, err = f.docs.Share(ctx, owner, doc.ID, model.NewID())
	wantErr(t, err, model.ErrNotFound)

	_, err = f.docs.Share(ctx, reader, doc.ID, reader.UserID)
	wantErr(t, err, model.ErrForbidden)

	_, err = f.docs.Share(ctx, owner, model.NewID(), reader.UserID)
	wantErr(t, err, model.ErrNotFound)

	_, err = f.docs.Unshare(ctx, reader, doc.ID, reader.UserID)
	wantErr(t, err, model.ErrForbidden)
}

func TestSharesListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	reader, _ := f.account(t, "b@x.com", "B")
	doc := f.document(t, owner, nil)

	shares, err := f.docs.Shares(ctx, owner, doc.ID)
	if err != nil {
		t.Fatalf("Shares() unexpected error: %v", err)
	}
	if shares.SharedWith == nil || len(shares.SharedWith) != 0 {
		t.Errorf("Shares() = %#v, want empty non-nil list", shares.SharedWith)
	}

	if _, err := f.docs.Share(ctx, owner, doc.ID, reader.UserID); err != nil {
		t.Fatalf("Share() unexpected error: %v", err)
	}
	_, err = f.docs.Shares(ctx, reader, doc.ID)
	wantErr(t, err, model.ErrForbidden)
}

func TestDocumentAccessOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	outsider, _ := f.account(t, "c@x.com", "C")
	doc := f.document(t, owner, nil)

	t.Run("anonymous before lookup", func(t *testing.T) {
		_, err := f.docs.Get(ctx, Identity{}, model.NewID())
		wantErr(t, err, model.ErrAuthentication)
		_, err = f.docs.Create(ctx, Identity{}, model.DocumentRequest{})
		wantErr(t, err, model.ErrAuthentication)
		_, err = f.docs.List(ctx, Identity{}, model.DocumentQuery{})
		wantErr(t, err, model.ErrAuthentication)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := f.docs.Get(ctx, outsider, model.NewID())
		wantErr(t, err, model.ErrNotFound)
		err = f.docs.Delete(ctx, owner, model.NewID())
		wantErr(t, err, model.ErrNotFound)
	})

	t.Run("outsider", func(t *testing.T) {
		_, err := f.docs.Get(ctx, outsider, doc.ID)
		wantErr(t, err, model.ErrForbidden)
		_, err = f.docs.Update(ctx, outsider, doc.ID, model.DocumentRequest{Content: map[string]any{}})
		wantErr(t, err, model.ErrForbidden)
		err = f.docs.Delete(ctx, outsider, doc.ID)
		wantErr(t, err, model.ErrForbidden)
	})
}

func TestDocumentUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	doc := f.document(t, owner, map[string]any{"title": "v1", "keep": true})

	f.clock.Advance(time.Minute)
	updated, err := f.docs.Update(ctx, owner, doc.ID, model.DocumentRequest{Content: map[string]any{"title": "v2"}})
	if err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	if updated.Content["title"] != "v2" {
		t.Errorf("Update().Content = %v", updated.Content)
	}
	if _, ok := updated.Content["keep"]; ok {
		t.Error("Update() should replace the whole content")
	}
	if !updated.LastModifiedDate.After(doc.LastModifiedDate) {
		t.Errorf("LastModifiedDate = %v, want after %v", updated.LastModifiedDate, doc.LastModifiedDate)
	}
	if !updated.CreationDate.Equal(doc.CreationDate) {
		t.Errorf("CreationDate changed to %v", updated.CreationDate)
	}

	_, err = f.docs.Update(ctx, owner, doc.ID, model.DocumentRequest{})
	wantErr(t, err, model.ErrValidation)

	if err := f.docs.Delete(ctx, owner, doc.ID); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	_, err = f.docs.Get(ctx, owner, doc.ID)
	wantErr(t, err, model.ErrNotFound)
}

func TestDocumentListProjection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	reader, _ := f.account(t, "b@x.com", "B")
	other, _ := f.account(t, "c@x.com", "C")

	shared := f.document(t, owner, map[string]any{"title": "shared"})
	f.clock.Advance(time.Second)
	f.document(t, owner, map[string]any{"title": "private"})
	f.clock.Advance(time.Second)
	f.document(t, reader, map[string]any{"title": "reader's own"})

	for _, r := range []Identity{reader, other} {
		if _, err := f.docs.Share(ctx, owner, shared.ID, r.UserID); err != nil {
			t.Fatalf("Share() unexpected error: %v", err)
		}
	}

	ownerView, err := f.docs.Get(ctx, owner, shared.ID)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if len(ownerView.SharedWith) != 2 {
		t.Errorf("owner sees shared_with %v, want both recipients", ownerView.SharedWith)
	}

	page, err := f.docs.List(ctx, reader, model.DocumentQuery{Scope: model.ScopeShared})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if page.Total != 1 || len(page.Data) != 1 {
		t.Fatalf("List(shared) = %+v", page)
	}
	if !slices.Equal(page.Data[0].SharedWith, []string{reader.UserID}) {
		t.Errorf("recipient sees shared_with %v, want only itself", page.Data[0].SharedWith)
	}
	if page.Page != 1 || page.Limit != DefaultPageLimit {
		t.Errorf("List() page/limit = %d/%d", page.Page, page.Limit)
	}

	all, err := f.docs.List(ctx, reader, model.DocumentQuery{Scope: model.ScopeAll})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if all.Total != 2 {
		t.Errorf("List(all).Total = %d, want 2", all.Total)
	}

	owned, err := f.docs.List(ctx, owner, model.DocumentQuery{Scope: model.ScopeOwned, SortBy: model.SortByCreated, Descending: true, Limit: 1})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if owned.Total != 2 || len(owned.Data) != 1 || owned.Data[0].Content["title"] != "private" {
		t.Errorf("List(owned, desc, limit 1) = %+v", owned)
	}

	second, err := f.docs.List(ctx, owner, model.DocumentQuery{Scope: model.ScopeOwned, SortBy: model.SortByCreated, Descending: true, Limit: 1, Page: 2})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(second.Data) != 1 || second.Data[0].ID != shared.ID {
		t.Errorf("List(page 2) = %+v", second)
	}
}

func TestDocumentListValidation(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")

	tests := []struct {
		name  string
		query model.DocumentQuery
		field string
	}{
		{"scope", model.DocumentQuery{Scope: "mine"}, "scope"},
		{"sort", model.DocumentQuery{SortBy: "title"}, "sort_by"},
		{"page", model.DocumentQuery{Page: -1}, "page"},
		{"limit too small", model.DocumentQuery{Limit: -5}, "limit"},
		{"limit too large", model.DocumentQuery{Limit: MaxPageLimit + 1}, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.docs.List(context.Background(), owner, tt.query)
			wantErr(t, err, model.ErrValidation)
		})
	}
}

func TestCollaborators(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, _ := f.account(t, "a@x.com", "A")
	reader, _ := f.account(t, "b@x.com", "B")
	other, _ := f.account(t, "c@x.com", "C")
	doc := f.document(t, owner, nil)

	if _, err := f.docs.Share(ctx, owner, doc.ID, reader.UserID); err != nil {
		t.Fatalf("Share() unexpected error: %v", err)
	}

	list, err := f.docs.Collaborators(ctx, owner, doc.ID)
	if err != nil {
		t.Fatalf("Collaborators() unexpected error: %v", err)
	}
	if len(list.Data) != 2 {
		t.Fatalf("Collaborators() = %+v, want two entries", list.Data)
	}
	for _, c := range list.Data {
		switch c.ID {
		case reader.UserID:
			if !c.Shared {
				t.Error("recipient should be marked shared")
			}
		case other.UserID:
			if c.Shared {
				t.Error("non-recipient should not be marked shared")
			}
		default:
			t.Errorf("unexpected collaborator %q", c.ID)
		}
	}

	_, err = f.docs.Collaborators(ctx, reader, doc.ID)
	wantErr(t, err, model.ErrForbidden)
}
