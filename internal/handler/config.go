package handler

import (
	"io"
	"net/http"

	"github.com/zhiban/zhiban/internal/repository"
	"github.com/zhiban/zhiban/pkg/errors"
	"github.com/zhiban/zhiban/pkg/model"
)

// ConfigHandler 生成器配置与配员规则处理器
type ConfigHandler struct {
	repo repository.RosterRepository
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(repo repository.RosterRepository) *ConfigHandler {
	return &ConfigHandler{repo: repo}
}

// Generator 读取或整体替换生成器配置文档
func (h *ConfigHandler) Generator(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		raw, err := h.repo.LoadConfig(r.Context(), model.GeneratorSettingsKey)
		if err != nil {
			respondError(w, asAppError(err))
			return
		}
		cfg, invalid, err := model.ParseGeneratorConfig(raw)
		if err != nil {
			cfg = model.DefaultGeneratorConfig().Normalize()
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"config":       cfg,
			"invalid_keys": invalid,
		})

	case http.MethodPut:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "读取请求体失败"))
			return
		}
		cfg, invalid, err := model.ParseGeneratorConfig(raw)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "配置文档无法解析"))
			return
		}
		encoded, err := cfg.Encode()
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInternal, "序列化配置失败"))
			return
		}
		if err := h.repo.SaveConfig(r.Context(), model.GeneratorSettingsKey, encoded); err != nil {
			respondError(w, asAppError(err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"ok":           true,
			"invalid_keys": invalid,
		})

	default:
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET与PUT方法"))
	}
}

// Staffing 读取或整体替换最低配员规则文档
func (h *ConfigHandler) Staffing(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		raw, err := h.repo.LoadConfig(r.Context(), model.StaffingRulesKey)
		if err != nil {
			respondError(w, asAppError(err))
			return
		}
		rules, err := model.ParseStaffingRules(raw)
		if err != nil {
			rules = &model.StaffingRules{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})

	case http.MethodPut:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "读取请求体失败"))
			return
		}
		rules, err := model.ParseStaffingRules(raw)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "配员规则文档无法解析"))
			return
		}
		encoded, err := rules.Encode()
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInternal, "序列化配员规则失败"))
			return
		}
		if err := h.repo.SaveConfig(r.Context(), model.StaffingRulesKey, encoded); err != nil {
			respondError(w, asAppError(err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})

	default:
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET与PUT方法"))
	}
}
