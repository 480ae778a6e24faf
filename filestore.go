// 交易文件读写

package bpfsconsensus

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/spf13/afero"
)

// FileStore 封装了交易文件的读写
type FileStore struct {
	Fs       afero.Fs
	BasePath string
}

// NewFileStore 创建一个新的FileStore实例
func NewFileStore(fs afero.Fs, basePath string) *FileStore {
	return &FileStore{Fs: fs, BasePath: basePath}
}

// resolve 相对路径基于 BasePath
func (fs *FileStore) resolve(name string) string {
	if filepath.IsAbs(name) || fs.BasePath == "" {
		return name
	}
	return filepath.Join(fs.BasePath, name)
}

// ReadTransaction 读取交易文件。文件内容可以是十六进制文本，也可以是原始序列化字节。
// 读取或解析失败返回 rules.ErrIO 类别的错误。
func (fs *FileStore) ReadTransaction(name string) (*wire.MsgTx, error) {
	path := fs.resolve(name)
	data, err := afero.ReadFile(fs.Fs, path)
	if err != nil {
		return nil, rules.WrapError(rules.ErrIO, fmt.Sprintf("读取交易文件 %s 失败", path), err)
	}

	raw := data
	if decoded, err := hex.DecodeString(string(bytes.TrimSpace(data))); err == nil {
		raw = decoded
	}

	tx := new(wire.MsgTx)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, rules.WrapError(rules.ErrIO, fmt.Sprintf("解析交易文件 %s 失败", path), err)
	}
	return tx, nil
}

// WriteTransaction 以十六进制文本写入交易文件，必要时创建目录
func (fs *FileStore) WriteTransaction(name string, tx *wire.MsgTx) error {
	path := fs.resolve(name)
	if err := fs.Fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return fmt.Errorf("序列化交易失败: %w", err)
	}
	return afero.WriteFile(fs.Fs, path, []byte(hex.EncodeToString(buf.Bytes())), 0644)
}

// ValidateFromFile 读取交易文件并执行双路径校验
func (v *ConsensusValidator) ValidateFromFile(files *FileStore, name string) error {
	tx, err := files.ReadTransaction(name)
	if err != nil {
		return err
	}
	return v.Validate(tx)
}
