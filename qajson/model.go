// Package qajson 在QA JSON文档与密度检查之间转换参数与结果
package qajson

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	keyQA             = "qa"
	keyChecks         = "checks"
	keyInfo           = "info"
	keyInputs         = "inputs"
	keyOutputs        = "outputs"
	keySurveyProducts = "survey_products"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"

	StatePass = "pass"
	StateFail = "fail"

	ChartHistogram = "histogram"
)

// 文档根；qa以外的顶层字段原样保留
type Root struct {
	QA   QA
	rest map[string]json.RawMessage
}

func (r *Root) UnmarshalJSON(b []byte) (err error) {
	var m map[string]json.RawMessage
	if err = json.Unmarshal(b, &m); err != nil {
		return
	}
	if v, ok := m[keyQA]; ok {
		if err = json.Unmarshal(v, &r.QA); err != nil {
			return
		}
	}
	delete(m, keyQA)
	r.rest = m
	return
}

func (r Root) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.rest)+1)
	for k, v := range r.rest {
		m[k] = v
	}
	m[keyQA] = r.QA
	return json.Marshal(m)
}

// 只解析survey_products，其余数据层原样保留
type QA struct {
	SurveyProducts *DataLevel
	rest           map[string]json.RawMessage
}

func (q *QA) UnmarshalJSON(b []byte) (err error) {
	var m map[string]json.RawMessage
	if err = json.Unmarshal(b, &m); err != nil {
		return
	}
	if sp, ok := m[keySurveyProducts]; ok && string(sp) != "null" {
		q.SurveyProducts = &DataLevel{}
		if err = json.Unmarshal(sp, q.SurveyProducts); err != nil {
			return
		}
	}
	delete(m, keySurveyProducts)
	q.rest = m
	return
}

func (q QA) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(q.rest)+1)
	for k, v := range q.rest {
		m[k] = v
	}
	if q.SurveyProducts != nil {
		m[keySurveyProducts] = q.SurveyProducts
	}
	return json.Marshal(m)
}

// 数据层；checks以外的字段原样保留
type DataLevel struct {
	Checks []*Check
	rest   map[string]json.RawMessage
}

func (d *DataLevel) UnmarshalJSON(b []byte) (err error) {
	var m map[string]json.RawMessage
	if err = json.Unmarshal(b, &m); err != nil {
		return
	}
	if v, ok := m[keyChecks]; ok {
		if err = json.Unmarshal(v, &d.Checks); err != nil {
			return
		}
	}
	delete(m, keyChecks)
	d.rest = m
	return
}

func (d DataLevel) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.rest)+1)
	for k, v := range d.rest {
		m[k] = v
	}
	m[keyChecks] = d.Checks
	return json.Marshal(m)
}

// 单项检查；未修改Outputs的检查按原文输出
type Check struct {
	Info    Info
	Inputs  Inputs
	Outputs *Outputs
	raw     map[string]json.RawMessage
}

func (c *Check) UnmarshalJSON(b []byte) (err error) {
	if err = json.Unmarshal(b, &c.raw); err != nil {
		return
	}
	if v, ok := c.raw[keyInfo]; ok {
		if err = json.Unmarshal(v, &c.Info); err != nil {
			return
		}
	}
	if v, ok := c.raw[keyInputs]; ok {
		if err = json.Unmarshal(v, &c.Inputs); err != nil {
			return
		}
	}
	return
}

func (c Check) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.raw)+3)
	for k, v := range c.raw {
		m[k] = v
	}
	if c.raw == nil {
		m[keyInfo] = c.Info
		m[keyInputs] = c.Inputs
	}
	if c.Outputs != nil {
		m[keyOutputs] = c.Outputs
	}
	return json.Marshal(m)
}

type Info struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Version     string          `json:"version,omitempty"`
	Group       json.RawMessage `json:"group,omitempty"`
}

type Inputs struct {
	Files  []File  `json:"files"`
	Params []Param `json:"params"`
}

type File struct {
	Path        string `json:"path"`
	FileType    string `json:"file_type"`
	Description string `json:"description,omitempty"`
}

type Param struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// 按名称查找参数值
func (in Inputs) Param(name string) (v any, ok bool) {
	for _, p := range in.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return
}

// 第一个指定类型的输入文件
func (in Inputs) FirstFile(fileType string) (path string, ok bool) {
	for _, f := range in.Files {
		if f.FileType == fileType {
			return f.Path, true
		}
	}
	return
}

type Outputs struct {
	Execution  *Execution  `json:"execution,omitempty"`
	Messages   []string    `json:"messages,omitempty"`
	Data       *OutputData `json:"data,omitempty"`
	CheckState string      `json:"check_state,omitempty"`
}

type Execution struct {
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type OutputData struct {
	Chart   Chart   `json:"chart"`
	Summary Summary `json:"summary"`
	Map     string  `json:"map,omitempty"`     // GeoJSON字符串
	Extents string  `json:"extents,omitempty"` // GeoJSON字符串
}

type Chart struct {
	Type string     `json:"type"`
	Data []ChartBin `json:"data"`
}

// 直方图区间，序列化为 ["密度值", 格元数]
type ChartBin struct {
	Value string
	Count int64
}

func (b ChartBin) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{b.Value, b.Count})
}

func (b *ChartBin) UnmarshalJSON(data []byte) (err error) {
	var pair []json.RawMessage
	if err = json.Unmarshal(data, &pair); err != nil {
		return
	}
	if len(pair) != 2 {
		return fmt.Errorf("chart bin needs 2 elements, got %d", len(pair))
	}
	if err = json.Unmarshal(pair[0], &b.Value); err != nil {
		return
	}
	return json.Unmarshal(pair[1], &b.Count)
}

type Summary struct {
	TotalSoundings          int64   `json:"total_soundings"`
	CheckPassed             bool    `json:"check_passed"`
	PercentageOverThreshold float64 `json:"percentage_over_threshold"`
	UnderThresholdSoundings float64 `json:"under_threshold_soundings"`
	FailedNodes             int64   `json:"failed_nodes"`
}

func Load(path string) (root *Root, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	root = &Root{}
	if err = json.Unmarshal(b, root); err != nil {
		root = nil
	}
	return
}

func (r *Root) Save(path string) (err error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
