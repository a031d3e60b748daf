package view

// FileRow — строка для вывода списка документов архива в CLI.
type FileRow struct {
	Path     string
	Title    string
	Size     int64
	IsRead   bool
	ReadDate string
}

// Mark возвращает отметку прочтения для вывода.
func (r FileRow) Mark() string {
	if r.IsRead {
		return "[x]"
	}
	return "[ ]"
}
