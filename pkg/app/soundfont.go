package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zurustar/flowrun/pkg/fileutil"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path of the SoundFont within FileSystem
	Path string
	// FileSystem is the FileSystem to load it from
	FileSystem fileutil.FileSystem
	// IsEmbedded indicates whether the SoundFont is embedded
	IsEmbedded bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
//  1. explicit path (--soundfont or SOUNDFONT)
//  2. embedded soundfonts directory
//  3. document directories
//  4. current directory
//
// A missing explicit path is an error; otherwise nil means not found.
func findSoundFont(embedFS fs.FS, explicit string, dirs []string) (*SoundFontLocation, error) {
	// 1. 明示指定
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("soundfont %s: %w", explicit, err)
		}
		return &SoundFontLocation{
			Path:       filepath.Base(explicit),
			FileSystem: fileutil.NewDirFS(filepath.Dir(explicit)),
		}, nil
	}

	// 2. 埋め込み soundfonts ディレクトリ
	if embedFS != nil {
		if found, err := fileutil.FindFileCaseInsensitiveFS(embedFS, "soundfonts", DefaultSoundFontName); err == nil {
			sub, err := fs.Sub(embedFS, "soundfonts")
			if err == nil {
				return &SoundFontLocation{
					Path:       filepath.Base(found), // FileSystemのベースが"soundfonts"なので、ファイル名だけ
					FileSystem: fileutil.NewFS(sub, "soundfonts"),
					IsEmbedded: true,
				}, nil
			}
		}
	}

	// 3, 4. 文書ディレクトリ、カレントディレクトリ
	for _, dir := range append(append([]string{}, dirs...), ".") {
		found, err := fileutil.FindFileCaseInsensitive(dir, DefaultSoundFontName)
		if err != nil {
			continue
		}
		return &SoundFontLocation{
			Path:       filepath.Base(found),
			FileSystem: fileutil.NewDirFS(dir),
		}, nil
	}
	return nil, nil
}
