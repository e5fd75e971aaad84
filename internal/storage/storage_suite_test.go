package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/models"
)

// runStorageSuite exercises the behavior every Storage implementation must share.
// prefix keeps ids unique when the backing database outlives the test.
func runStorageSuite(t *testing.T, store Storage, prefix string) {
	t.Helper()
	ctx := context.Background()
	docID := prefix + "doc1"

	t.Run("documents", func(t *testing.T) {
		doc := &models.Document{ID: docID, Title: "Biology", Filename: "bio.pdf", StorageRef: docID + ".pdf"}
		if err := store.CreateDocument(ctx, doc); err != nil {
			t.Fatal(err)
		}
		if doc.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}
		got, err := store.GetDocument(ctx, docID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "Biology" || got.Indexed() {
			t.Errorf("got %+v", got)
		}
		if _, err := store.GetDocument(ctx, prefix+"missing"); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		if err := store.MarkDocumentIndexed(ctx, prefix+"missing", 1, 1); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("mark missing: expected not found, got %v", err)
		}
	})

	t.Run("chunks", func(t *testing.T) {
		chunks := []*models.Chunk{
			{ID: docID + "_c0", DocumentID: docID, Index: 0, Page: 2, StartChar: 0, EndChar: 10, Content: "second page"},
			{ID: docID + "_c1", DocumentID: docID, Index: 1, Page: 1, StartChar: 8, EndChar: 18, Content: "first page"},
			{ID: docID + "_c2", DocumentID: docID, Index: 2, Page: 2, StartChar: 16, EndChar: 20, Content: "tail"},
		}
		if err := store.BatchCreateChunks(ctx, chunks); err != nil {
			t.Fatal(err)
		}
		if err := store.MarkDocumentIndexed(ctx, docID, 2, 20); err != nil {
			t.Fatal(err)
		}
		doc, _ := store.GetDocument(ctx, docID)
		if !doc.Indexed() || doc.PageCount != 2 || doc.CharCount != 20 {
			t.Errorf("after mark: %+v", doc)
		}
		got, err := store.GetChunksByDocumentID(ctx, docID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0].Index != 0 || got[2].Index != 2 {
			t.Fatalf("chunks by index: %+v", got)
		}
		scoped, err := store.ListChunksForScope(ctx, []string{docID}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(scoped) != 2 || scoped[0].Page != 1 || scoped[1].Index != 0 {
			t.Errorf("scope order should be page then index: %+v", scoped)
		}
		n, err := store.CountChunksByDocument(ctx, docID)
		if err != nil || n != 3 {
			t.Errorf("CountChunksByDocument = %d, %v", n, err)
		}
	})

	t.Run("embeddings", func(t *testing.T) {
		pending, err := store.ListUnembeddedChunks(ctx, docID, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 3 {
			t.Fatalf("expected 3 pending, got %d", len(pending))
		}
		vectors := []*models.EmbeddingVector{
			{ID: prefix + "e0", ChunkID: docID + "_c0", DocumentID: docID, Vector: unit(0), Preview: "second page", Page: 2},
			{ID: prefix + "e1", ChunkID: docID + "_c1", DocumentID: docID, Vector: unit(1), Preview: "first page", Page: 1},
		}
		if err := store.UpsertEmbeddings(ctx, vectors); err != nil {
			t.Fatal(err)
		}
		// Same chunk again under a new row id converges to one row.
		again := []*models.EmbeddingVector{
			{ID: prefix + "e0b", ChunkID: docID + "_c0", DocumentID: docID, Vector: unit(0), Preview: "second page", Page: 2},
		}
		if err := store.UpsertEmbeddings(ctx, again); err != nil {
			t.Fatal(err)
		}
		n, err := store.CountEmbeddings(ctx, docID)
		if err != nil || n != 2 {
			t.Errorf("CountEmbeddings = %d, %v", n, err)
		}
		pending, _ = store.ListUnembeddedChunks(ctx, docID, 10)
		if len(pending) != 1 || pending[0].Index != 2 {
			t.Errorf("remaining pending: %+v", pending)
		}
	})

	t.Run("search", func(t *testing.T) {
		matches, err := store.Search(ctx, unit(1), 5, []string{docID})
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(matches))
		}
		if matches[0].ChunkID != docID+"_c1" || matches[0].Page != 1 || matches[0].Content != "first page" {
			t.Errorf("best match: %+v", matches[0])
		}
		if matches[0].Distance > matches[1].Distance {
			t.Error("distances should ascend")
		}
		top1, _ := store.Search(ctx, unit(1), 1, []string{docID})
		if len(top1) != 1 {
			t.Errorf("k=1 returned %d", len(top1))
		}
		other, _ := store.Search(ctx, unit(1), 5, []string{prefix + "other"})
		if len(other) != 0 {
			t.Errorf("scope leak: %+v", other)
		}
	})

	t.Run("quizzes", func(t *testing.T) {
		quizID := prefix + "quiz1"
		quiz := &models.Quiz{ID: quizID, DocumentScope: []string{docID}, Type: "mixed"}
		questions := []*models.Question{
			{ID: quizID + "_q0", QuizID: quizID, Position: 0, Prompt: "Pick", Body: models.MCQ{Options: []string{"a", "b"}, CorrectIndex: 1, AnswerText: "b"}},
			{ID: quizID + "_q1", QuizID: quizID, Position: 1, Prompt: "Name", Explanation: "see page 1", Body: models.SAQ{Answer: "cell"}},
			{ID: quizID + "_q2", QuizID: quizID, Position: 2, Prompt: "Discuss", Body: models.LAQ{Outline: "three points"}},
		}
		if err := store.CreateQuiz(ctx, quiz, questions); err != nil {
			t.Fatal(err)
		}
		got, err := store.GetQuiz(ctx, quizID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.DocumentScope) != 1 || got.DocumentScope[0] != docID {
			t.Errorf("scope: %+v", got.DocumentScope)
		}
		qs, err := store.GetQuestionsByQuizID(ctx, quizID)
		if err != nil {
			t.Fatal(err)
		}
		if len(qs) != 3 {
			t.Fatalf("expected 3 questions, got %d", len(qs))
		}
		mcq, ok := qs[0].Body.(models.MCQ)
		if !ok || mcq.CorrectIndex != 1 || len(mcq.Options) != 2 || qs[0].CanonicalAnswer() != "b" {
			t.Errorf("mcq: %+v", qs[0].Body)
		}
		if qs[1].Type() != models.QuestionSAQ || qs[1].CanonicalAnswer() != "cell" || qs[1].Explanation != "see page 1" {
			t.Errorf("saq: %+v", qs[1])
		}
		if qs[2].Type() != models.QuestionLAQ || qs[2].CanonicalAnswer() != "three points" {
			t.Errorf("laq: %+v", qs[2])
		}
		if _, err := store.GetQuiz(ctx, prefix+"nope"); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("expected not found, got %v", err)
		}

		for i := 0; i < 2; i++ {
			attempt := &models.QuizAttempt{
				ID: fmt.Sprintf("%sattempt%d", prefix, i), QuizID: quizID, Score: i + 1, Total: 3,
				Breakdown: []models.GradedAnswer{{QuestionID: quizID + "_q0", Type: models.QuestionMCQ, UserAnswer: "b", CanonicalAnswer: "b", Correct: true}},
				CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
			}
			if err := store.CreateQuizAttempt(ctx, attempt); err != nil {
				t.Fatal(err)
			}
		}
		attempts, err := store.ListQuizAttempts(ctx, quizID)
		if err != nil {
			t.Fatal(err)
		}
		if len(attempts) != 2 || attempts[0].Score != 1 || attempts[1].Score != 2 {
			t.Fatalf("attempts: %+v", attempts)
		}
		if len(attempts[0].Breakdown) != 1 || !attempts[0].Breakdown[0].Correct {
			t.Errorf("breakdown: %+v", attempts[0].Breakdown)
		}
	})
}

// unit returns a 3-d basis vector.
func unit(axis int) []float32 {
	v := make([]float32, 3)
	v[axis] = 1
	return v
}
