package ai

import (
	"fmt"
	"strings"
)

const ImageCapsulePrompt = `
# Task Context
You are an assistant that writes compact content capsules for files in a
document library. You will be shown a single image that represents a file
(a photo, a chart, a scanned page, or a rendered document page).

# Background Data
File metadata:
%s

# Detailed Task Description & Rules
- Summarize what the image shows in two to three sentences.
- Extract up to ten short keyphrases that capture the visible content.
- Report a confidence value between 0 and 1 for how well the content could
  be read. Use low values for blurry, cropped, or mostly empty images.
- The file name and path may hint at the subject, but describe what is
  actually visible.
- Answer in the dominant language of the visible content.

# Output Formatting
Return a JSON object with this structure:
{
  "summary": "<two to three sentences>",
  "keyphrases": ["<phrase1>", "<phrase2>"],
  "confidence": 0.0
}
Output must be valid JSON only (no commentary, no extra text).
`

const TextCapsulePrompt = `
# Task Context
You are an assistant that writes compact content capsules for files in a
document library. You will be given a bounded excerpt of a file: plain
text, extracted document text, or the head rows of a spreadsheet rendered
as a table.

# Background Data
File metadata:
%s

File excerpt:
"""
%s
"""

# Detailed Task Description & Rules
- Summarize the content in two to three sentences.
- Extract up to ten short keyphrases that capture the content.
- Report a confidence value between 0 and 1 for how well the content could
  be read. Use low values for garbled, truncated, or near-empty excerpts.
- Tables may be cut off after the first rows; summarize what the columns
  and visible rows describe without inventing totals.
- Answer in the dominant language of the excerpt.

# Output Formatting
Return a JSON object with this structure:
{
  "summary": "<two to three sentences>",
  "keyphrases": ["<phrase1>", "<phrase2>"],
  "confidence": 0.0
}
Output must be valid JSON only (no commentary, no extra text).
`

const ClassifyPrompt = `
# Task Context
You are an assistant that files documents into a fixed two-level category
tree. You will be given a content capsule for one file and the complete
list of allowed category pairs.

# Background Data
File metadata:
%s

Content capsule:
- Summary: %s
- Keyphrases: [%s]

Allowed category pairs (level1 / level2):
%s

# Detailed Task Description & Rules
- Pick exactly one pair from the allowed list. Copy both names verbatim.
- Never invent a category or combine a level2 with the wrong level1.
- Base the decision on the capsule first; use the file name and path as
  secondary signals.
- Report a confidence value between 0 and 1 and a one-sentence evidence
  statement naming the signals you used.
- When nothing fits well, pick the closest pair and lower the confidence.

# Output Formatting
Return a JSON object with this structure:
{
  "category_l1": "<level1 name>",
  "category_l2": "<level2 name>",
  "confidence": 0.0,
  "evidence": "<one sentence>"
}
Output must be valid JSON only (no commentary, no extra text).
`

// FormatFileMeta renders file metadata as the compact block the prompts
// embed.
func FormatFileMeta(meta FileMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Name: %s\n", meta.Name)
	fmt.Fprintf(&b, "- Path: %s\n", meta.Path)
	fmt.Fprintf(&b, "- Extension: %s\n", meta.Extension)
	fmt.Fprintf(&b, "- Size: %d bytes", meta.SizeBytes)
	if meta.ModifiedTime != "" {
		fmt.Fprintf(&b, "\n- Modified: %s", meta.ModifiedTime)
	}
	return b.String()
}

// FormatCategoryPairs renders the allowed pairs as one "level1 / level2"
// line each, in taxonomy order.
func FormatCategoryPairs(pairs []CategoryPair) string {
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = fmt.Sprintf("- %s / %s", p.L1, p.L2)
	}
	return strings.Join(lines, "\n")
}
