package spec

import (
	"bytes"
	"encoding/json"

	"github.com/zintix-labs/minelab/errs"
	"gopkg.in/yaml.v3"
)

// GetTableSettingByYAML
// 會讀取 YAML 設定、初始化難度表並執行基本檢查後回傳。
func GetTableSettingByYAML(data []byte) (*TableSetting, error) {
	ts := &TableSetting{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err := dec.Decode(ts); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := ts.init(); err != nil {
		return nil, errs.Wrap(err, "table setting initialized err")
	}

	return ts, nil
}

// GetTableSettingByJSON
// 會讀取 Json 設定、初始化難度表並執行基本檢查後回傳
func GetTableSettingByJSON(data []byte) (*TableSetting, error) {
	ts := &TableSetting{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ts); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	if err := ts.init(); err != nil {
		return nil, errs.Wrap(err, "table setting initialized err")
	}

	return ts, nil
}
