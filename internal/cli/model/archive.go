package model

import "time"

// FileEntry — один документ внутри архива. Хранится только в составе ArchiveRecord.
type FileEntry struct {
	Path        string `json:"path"` // уникален в пределах архива
	Content     string `json:"content"`
	Size        int64  `json:"size"`
	DisplayName string `json:"displayName,omitempty"` // заголовок документа, если найден
	IsRead      bool   `json:"isRead"`
	// ReadDate (RFC3339) присутствует тогда и только тогда, когда IsRead == true.
	// При снятии отметки поле удаляется, а не обнуляется.
	ReadDate string `json:"readDate,omitempty"`
}

// Name возвращает имя для сортировки: DisplayName, иначе Path.
func (f FileEntry) Name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Path
}

// ArchiveRecord — агрегат, сохраняемый на каждый импортированный архив.
type ArchiveRecord struct {
	ID        int64       `json:"id"` // назначается хранилищем
	Name      string      `json:"name"`
	Size      int64       `json:"size"`
	FileCount int         `json:"fileCount"`
	TotalSize int64       `json:"totalSize"`
	Timestamp time.Time   `json:"timestamp"` // время создания, не меняется
	Files     []FileEntry `json:"files"`
}

func (r *ArchiveRecord) StoreKey() int64      { return r.ID }
func (r *ArchiveRecord) SetStoreKey(id int64) { r.ID = id }

// Clone возвращает глубокую копию записи.
func (r ArchiveRecord) Clone() ArchiveRecord {
	out := r
	if r.Files != nil {
		out.Files = make([]FileEntry, len(r.Files))
		copy(out.Files, r.Files)
	}
	return out
}

// FindFile возвращает индекс записи с точным совпадением пути или -1.
func (r *ArchiveRecord) FindFile(path string) int {
	if r == nil {
		return -1
	}
	for i := range r.Files {
		if r.Files[i].Path == path {
			return i
		}
	}
	return -1
}

// ReadCount возвращает число прочитанных документов.
func (r *ArchiveRecord) ReadCount() int {
	n := 0
	for _, f := range r.Files {
		if f.IsRead {
			n++
		}
	}
	return n
}
