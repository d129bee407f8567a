package common

// FileKind classifies a source file for extraction dispatch. It is derived
// from the file extension and decides which parser runs.
type FileKind string

const (
	FileKindImage   FileKind = "image"
	FileKindExcel   FileKind = "excel"
	FileKindText    FileKind = "text"
	FileKindPDF     FileKind = "pdf"
	FileKindDocx    FileKind = "docx"
	FileKindUnknown FileKind = "unknown"
)

// Modality is the LLM routing decision: which kind of model read the file.
type Modality string

const (
	ModalityImage    Modality = "image"
	ModalityTable    Modality = "table"
	ModalityDocument Modality = "document"
)

// FileDescriptor is the immutable identity of a remote file as produced by
// the enumerator. It is never mutated after enumeration; the inventory
// snapshot persists it across runs.
type FileDescriptor struct {
	FileID       string `json:"file_id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	Extension    string `json:"extension"`
	SizeBytes    int64  `json:"size_bytes"`
	ModifiedTime string `json:"mtime,omitempty"`
	ParentFolder string `json:"parent_folder,omitempty"`
	SpaceID      string `json:"remote_space_id,omitempty"`
}

// Capsule is the compact semantic abstract of a file: a short summary plus
// keyphrases, with a read-confidence and the provenance of how it was read.
//
// ConfidenceRead is always within [0,1]; values outside are coerced to 0 at
// the boundary. Error carries a short extraction failure note when the
// capsule was synthesized from a failed or empty extraction.
type Capsule struct {
	Summary        string   `json:"summary"`
	Keyphrases     []string `json:"keyphrases"`
	ConfidenceRead float64  `json:"confidence_read"`
	Modality       Modality `json:"modality"`
	Kind           FileKind `json:"kind"`
	Error          string   `json:"error,omitempty"`
}

// Classification is the two-level taxonomy assignment for a file. After
// normalization (CategoryL1, CategoryL2) is always a member of the configured
// taxonomy.
type Classification struct {
	CategoryL1 string  `json:"category_l1"`
	CategoryL2 string  `json:"category_l2"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

// ProcessStatus is the terminal state of a file in one pipeline run.
type ProcessStatus string

const (
	StatusSuccess ProcessStatus = "success"
	StatusFailed  ProcessStatus = "failed"
	StatusSkipped ProcessStatus = "skipped"
)

// FileProcessResult is one journal record: the file identity plus whatever
// the pipeline produced for it.
type FileProcessResult struct {
	FileDescriptor
	Status         ProcessStatus   `json:"status"`
	Capsule        *Capsule        `json:"capsule,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Error          string          `json:"error,omitempty"`
	ProcessingTime float64         `json:"processing_time"`
}

// Inventory is the phase-1 snapshot of the remote tree. AllFiles preserves
// enumeration order, which is stable for an unchanged remote snapshot.
type Inventory struct {
	Folders    int                 `json:"folders"`
	Files      int                 `json:"files"`
	TotalSize  int64               `json:"total_size"`
	Extensions map[string]int      `json:"extensions"`
	Categories map[string]int      `json:"categories"`
	Examples   map[string][]string `json:"examples"`
	AllFiles   []FileDescriptor    `json:"all_files"`
	ScanTime   string              `json:"scan_time"`
}

// ClampConfidence coerces a model-reported confidence into [0,1].
// Out-of-range values are treated as unreliable and collapse to 0.
func ClampConfidence(v float64) float64 {
	if v < 0 || v > 1 {
		return 0
	}
	return v
}
