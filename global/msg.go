package global

import (
	"errors"

	"github.com/zhihao1021/tjoy/tools/errs"
)

// Msg is the JSON envelope of the plain HTTP endpoints.
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

// Fail maps err onto the envelope, keeping the code of a CodeError.
func Fail(err error) *Msg {
	var ce errs.CodeError
	if errors.As(err, &ce) {
		return &Msg{Code: ce.ECode(), Msg: ce.EMsg()}
	}
	return &Msg{Code: errs.ServerInternalError, Msg: err.Error()}
}
