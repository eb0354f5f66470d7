package dto

import (
	"errors"
	"reflect"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"thesis-defense/backend/internal/workflow"
)

// RegisterValidators 在 gin 的校验引擎上注册业务校验规则：
//
//	iso_date       YYYY-MM-DD
//	time_period    固定答辩时段
//	score_step     分数在允许范围内且符合步长
//	form_state     已知表单状态
//	meeting_state  已知会议状态
func RegisterValidators(policy workflow.Policy) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	return registerRules(v, policy)
}

func registerRules(v *validator.Validate, policy workflow.Policy) error {
	rules := map[string]validator.Func{
		"iso_date":      isoDate,
		"time_period":   timePeriod,
		"score_step":    scoreStep(policy),
		"form_state":    formState,
		"meeting_state": meetingState,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(workflow.DateLayout, fl.Field().String())
	return err == nil
}

func timePeriod(fl validator.FieldLevel) bool {
	return workflow.TimePeriod(fl.Field().String()).Valid()
}

func formState(fl validator.FieldLevel) bool {
	return workflow.FormState(fl.Field().String()).Valid()
}

func meetingState(fl validator.FieldLevel) bool {
	return workflow.MeetingState(fl.Field().String()).Valid()
}

func scoreStep(policy workflow.Policy) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.Float64 && field.Kind() != reflect.Float32 {
			return false
		}
		return workflow.ValidateScore(policy, field.Float()) == nil
	}
}
