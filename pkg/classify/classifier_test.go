package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/taxonomy"
)

type fakeAI struct {
	gotInput ai.ClassifyInput
	result   ai.ClassifyResult
	err      error
}

func (f *fakeAI) DescribeText(_ context.Context, _ string, _ ai.FileMeta) (ai.CapsuleResult, error) {
	return ai.CapsuleResult{}, nil
}

func (f *fakeAI) DescribeImage(_ context.Context, _ string, _ ai.FileMeta) (ai.CapsuleResult, error) {
	return ai.CapsuleResult{}, nil
}

func (f *fakeAI) Classify(_ context.Context, input ai.ClassifyInput) (ai.ClassifyResult, error) {
	f.gotInput = input
	return f.result, f.err
}

func singlePairTree() *taxonomy.Taxonomy {
	return &taxonomy.Taxonomy{Categories: []taxonomy.Category{
		{
			Name:          "产品资料",
			Subcategories: []taxonomy.Subcategory{{Name: "产品图片"}},
		},
	}}
}

var testCapsule = common.Capsule{
	Summary:    "产品的外观照片",
	Keyphrases: []string{"产品", "照片"},
}

var testFD = common.FileDescriptor{Name: "photo.jpg", Extension: "jpg"}

func TestClassifyExactMember(t *testing.T) {
	fake := &fakeAI{result: ai.ClassifyResult{
		L1: "产品资料", L2: "产品图片", Confidence: 0.9, Evidence: "照片内容",
	}}
	c := NewClassifier(fake, singlePairTree())

	got, err := c.Classify(context.Background(), testCapsule, testFD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CategoryL1 != "产品资料" || got.CategoryL2 != "产品图片" {
		t.Errorf("got %s/%s", got.CategoryL1, got.CategoryL2)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

func TestClassifyNormalizesUnknownL2(t *testing.T) {
	fake := &fakeAI{result: ai.ClassifyResult{
		L1: "产品资料", L2: "奇异L2", Confidence: 0.7, Evidence: "看起来像产品",
	}}
	c := NewClassifier(fake, singlePairTree())

	got, err := c.Classify(context.Background(), testCapsule, testFD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CategoryL2 != "产品图片" {
		t.Errorf("l2 = %s, want 产品图片", got.CategoryL2)
	}
	if got.Evidence != "看起来像产品" {
		t.Errorf("evidence must be preserved, got %q", got.Evidence)
	}
}

func TestClassifyOffersAllPairs(t *testing.T) {
	fake := &fakeAI{result: ai.ClassifyResult{L1: "产品资料", L2: "产品图片"}}
	tree := singlePairTree()
	c := NewClassifier(fake, tree)

	if _, err := c.Classify(context.Background(), testCapsule, testFD); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.gotInput.Allowed) != len(tree.Pairs()) {
		t.Errorf("allowed pairs = %d, want %d", len(fake.gotInput.Allowed), len(tree.Pairs()))
	}
	if fake.gotInput.Summary != testCapsule.Summary {
		t.Errorf("summary not passed through")
	}
}

func TestClassifyModelErrorYieldsUnclassified(t *testing.T) {
	fake := &fakeAI{err: ai.ErrLLM}
	c := NewClassifier(fake, singlePairTree())

	got, err := c.Classify(context.Background(), testCapsule, testFD)
	if !errors.Is(err, ai.ErrLLM) {
		t.Fatalf("err = %v, want ErrLLM", err)
	}
	if got.CategoryL1 != taxonomy.Unclassified || got.CategoryL2 != taxonomy.Unclassified {
		t.Errorf("got %s/%s, want unclassified pair", got.CategoryL1, got.CategoryL2)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if got.Evidence == "" {
		t.Error("evidence must carry the error message")
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	fake := &fakeAI{result: ai.ClassifyResult{
		L1: "产品资料", L2: "产品图片", Confidence: -0.5,
	}}
	c := NewClassifier(fake, singlePairTree())

	got, err := c.Classify(context.Background(), testCapsule, testFD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
}
