package client

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File is one selected image.
type File struct {
	Path     string
	Name     string
	Size     int64
	MIMEType string
}

// extraImageTypes covers image extensions missing from the builtin MIME table
// that content sniffing cannot recognise either.
var extraImageTypes = map[string]string{
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// SelectFiles builds a selection from paths. Directories are walked
// recursively; files that are not images are dropped.
func SelectFiles(paths []string) ([]File, error) {
	var files []File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			if f, ok := imageFile(p, info); ok {
				files = append(files, f)
			}
			continue
		}

		var found []File
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if f, ok := imageFile(path, fi); ok {
				found = append(found, f)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func imageFile(path string, info os.FileInfo) (File, bool) {
	if !info.Mode().IsRegular() {
		return File{}, false
	}
	mimeType := detectMIMEType(path)
	if !strings.HasPrefix(mimeType, "image/") {
		return File{}, false
	}
	return File{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MIMEType: mimeType,
	}, true
}

// detectMIMEType uses the extension first and falls back to sniffing the
// first 512 bytes.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	if t, ok := extraImageTypes[ext]; ok {
		return t
	}

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(head[:n]))
	if err != nil {
		return ""
	}
	return mediaType
}
