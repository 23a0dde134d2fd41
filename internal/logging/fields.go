package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RecordFields 提供记录来源/URL/结果字段，供逐条提取日志复用。
func RecordFields(runID, source, rawURL, outcome string) logrus.Fields {
	return logrus.Fields{
		"run_id":  runID,
		"source":  source,
		"url":     rawURL,
		"outcome": outcome,
	}
}
