package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// FolderLister fetches the folder list shown in the navigation and the
// composer folder picker.
type FolderLister interface {
	ListFolders(ctx context.Context) ([]leaseqa.Folder, error)
}

// FolderDataMiddleware loads the folder list once per page request and
// stores it in the request context. A failed load leaves the list empty;
// pages still render.
func FolderDataMiddleware(lister FolderLister) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			folders, err := lister.ListFolders(ctx)
			if err != nil {
				getLogger(ctx).WarnContext(ctx, "folder list unavailable",
					slog.String("error", err.Error()),
				)
				folders = nil
			}

			ctx = context.WithValue(ctx, contextKeyFolders, folders)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetFolders returns the folders loaded by FolderDataMiddleware. ok is
// false when the middleware did not run for this request.
func GetFolders(ctx context.Context) ([]leaseqa.Folder, bool) {
	folders, ok := ctx.Value(contextKeyFolders).([]leaseqa.Folder)
	return folders, ok
}
