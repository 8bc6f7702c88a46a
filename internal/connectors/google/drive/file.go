package drive

import (
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// MimeTypeFolder is the MIME type Drive gives folders.
const MimeTypeFolder = "application/vnd.google-apps.folder"

// fileFields are the fields requested for every file resource.
const fileFields = "id,name,mimeType,size,md5Checksum,modifiedTime,parents"

// listFields wraps fileFields for paginated list calls.
const listFields = "nextPageToken,files(" + fileFields + ")"

// childrenQuery selects the non-trashed children of parentID.
func childrenQuery(parentID string) string {
	return fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(parentID))
}

func foldersQuery(parentID string) string {
	return childrenQuery(parentID) + fmt.Sprintf(" and mimeType = '%s'", MimeTypeFolder)
}

func imagesQuery(folderID string) string {
	return childrenQuery(folderID) + " and mimeType contains 'image/'"
}

func subfolderQuery(parentID, name string) string {
	return foldersQuery(parentID) + fmt.Sprintf(" and name = '%s'", escapeQuery(name))
}

// escapeQuery escapes a value for use inside a quoted Drive query string.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func toFolder(f *drive.File) domain.Folder {
	return domain.Folder{ID: f.Id, Name: f.Name, ParentID: firstParent(f)}
}

func toObject(f *drive.File) domain.Object {
	return domain.Object{
		ID:       f.Id,
		Name:     f.Name,
		MIMEType: f.MimeType,
		Size:     f.Size,
		Signature: domain.Signature{
			Checksum:     f.Md5Checksum,
			ModifiedTime: f.ModifiedTime,
		},
		ParentID: firstParent(f),
	}
}

func firstParent(f *drive.File) string {
	if len(f.Parents) == 0 {
		return ""
	}
	return f.Parents[0]
}
