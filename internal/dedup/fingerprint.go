package dedup

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// Fingerprint digests title+url. MD5 keeps keys compatible with histories
// written by earlier versions of the bot; it is not used for security.
func Fingerprint(article domain.RawArticle) domain.Fingerprint {
	sum := md5.Sum([]byte(article.Title + article.URL))
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}
