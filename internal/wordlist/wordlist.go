// Package wordlist loads word lists from files.
package wordlist

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
)

//go:embed default_en.txt
var defaultEnglish string

// DefaultLang is the language bundled with the binary.
const DefaultLang = "en"

// LoadWords reads one word per line from the provided file path.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()
	return readWords(file)
}

// LoadOrDefault loads the word list at path. When the file is missing and lang
// is the bundled language, the embedded list is returned instead.
func LoadOrDefault(path, lang string) (words []string, source string, err error) {
	words, err = LoadWords(path)
	if err == nil {
		words = Filter(words, FilterForLang(lang))
		if len(words) == 0 {
			return nil, "", fmt.Errorf("word list has no usable %s words", lang)
		}
		return words, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !strings.EqualFold(lang, DefaultLang) {
		return nil, "", err
	}
	words, err = readWords(strings.NewReader(defaultEnglish))
	if err != nil {
		return nil, "", err
	}
	return words, "embedded:" + DefaultLang, nil
}

func readWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return words, nil
}

// LoadText reads a lesson file and collapses all whitespace runs into single spaces.
func LoadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		return "", fmt.Errorf("lesson text is empty")
	}
	return text, nil
}

// ListLangs returns the languages with a word list in dir, plus the bundled language.
func ListLangs(dir string) ([]string, error) {
	seen := map[string]bool{DefaultLang: true}
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		seen[strings.TrimSuffix(name, ".txt")] = true
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}
