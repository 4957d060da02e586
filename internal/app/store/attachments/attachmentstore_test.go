package attachmentstore_test

import (
	"errors"
	"testing"

	attachmentstore "github.com/dalemusser/taskhub/internal/app/store/attachments"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := attachmentstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	card, from, to := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	a, err := store.Create(ctx, models.CardAttachment{
		CardID: card, BoardID: from, FileName: "roadmap.pdf", ContentType: "application/pdf",
		Size: 2048, StorageKey: "cards/" + card.Hex() + "/roadmap.pdf", UploadedByID: primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.ID.IsZero() || a.CreatedAt.IsZero() {
		t.Errorf("created = %+v", a)
	}
	if _, err := store.Create(ctx, models.CardAttachment{CardID: card, BoardID: from, FileName: "b.png"}); err != nil {
		t.Fatal(err)
	}

	if err := store.MoveToBoard(ctx, card, to); err != nil {
		t.Fatalf("MoveToBoard failed: %v", err)
	}
	got, err := store.GetByID(ctx, a.ID)
	if err != nil || got.BoardID != to {
		t.Errorf("after move = %+v, %v", got, err)
	}
	list, err := store.ListByCard(ctx, card)
	if err != nil || len(list) != 2 {
		t.Errorf("ListByCard = %d, %v", len(list), err)
	}

	if n, err := store.Delete(ctx, a.ID); err != nil || n != 1 {
		t.Errorf("Delete = %d, %v", n, err)
	}
	if _, err := store.GetByID(ctx, a.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("GetByID after delete: err = %v", err)
	}
	if n, err := store.DeleteByCards(ctx, []primitive.ObjectID{card}); err != nil || n != 1 {
		t.Errorf("DeleteByCards = %d, %v", n, err)
	}
}
