package main

import (
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
)

type ReturnSignal struct {
	Value interface{}
}

func main() {
	i := interp.New(interp.Options{})
	exports := interp.Exports{
		"mypkg/mypkg": {
			"ReturnSignal": reflect.ValueOf((*ReturnSignal)(nil)),
		},
	}
	if err := i.Use(exports); err != nil {
		panic(err)
	}
	src := `
package main

import "mypkg"

func Run() (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rs, ok := r.(*mypkg.ReturnSignal); ok {
				result = rs.Value
			} else {
				result = "no match"
			}
		}
	}()
	panic(&mypkg.ReturnSignal{Value: 42})
}
`
	if _, err := i.Eval(src); err != nil {
		panic(err)
	}
	v, err := i.Eval("main.Run")
	if err != nil {
		panic(err)
	}
	run, ok := v.Interface().(func() (interface{}, error))
	if !ok {
		panic("bad signature")
	}
	res, err := run()
	fmt.Printf("res=%v err=%v\n", res, err)
}
