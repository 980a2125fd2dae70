// Package report 把各执行者的产出整理成最终的 Markdown 报告。
package report

import (
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iWorld-y/product_radar/app/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/app/product_radar/pkg/model"
)

// DateLayout 报告中的分析时间格式
const DateLayout = "2006-01-02 15:04:05"

const reportTpl = `# Product Analysis Report

## 📊 Basic Information

**ASIN:** {{.ASIN}}  
**Product URL:** {{.ProductURL}}  
**Analysis Date:** {{.Date}}  
**Report Type:** Complete Analysis

---

## 🛍️ Product Overview

{{.Overview}}

---

## 📈 Market Analysis

{{.Market}}

---

## 🎯 Optimization Recommendations

{{.Optimization}}

---

## 📋 Executive Summary

This comprehensive analysis report is based on real product data, combining product information, market analysis, and optimization recommendations to provide actionable insights for e-commerce optimization.

**Key Highlights:**
• **Data Quality:** {{.DataQuality}}  
• **Analysis Depth:** Complete (Product Data + Market Analysis + Optimization)  
• **Processing Iterations:** {{.Iterations}}  
• **Content Quality:** {{.ContentQuality}}
• **Recommendation Type:** Customized recommendations for specific product and market positioning`

var tpl = template.Must(template.New("report").Parse(reportTpl))

// Data 模板渲染数据
type Data struct {
	ASIN           string
	ProductURL     string
	Date           string
	Overview       string
	Market         string
	Optimization   string
	DataQuality    string
	Iterations     int
	ContentQuality string
}

// Compile 生成最终报告，综合后的内容优先
func Compile(state *model.AnalysisState, now time.Time) string {
	data := Data{
		ASIN:           orDefault(state.ASIN, "Unknown"),
		ProductURL:     state.ProductURL,
		Date:           now.Format(DateLayout),
		Overview:       Overview(state.ProductData, state.ASIN),
		Market:         orDefault(state.MarketAnalysis.Content(), "No market analysis available"),
		Optimization:   orDefault(state.OptimizationAdvice.Content(), "No recommendations available"),
		DataQuality:    dataQuality(state.ProductData),
		Iterations:     state.Iteration,
		ContentQuality: "Standard multi-agent analysis",
	}
	if state.SynthesisDone {
		data.ContentQuality = "Enhanced with AI-powered content synthesis"
	}

	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		logger.WithTask(state.TaskID).Errorf("渲染报告失败: %v", err)
		return ""
	}
	return sb.String()
}

// Overview 商品概览：综合文本 > 抓取摘要 > 模型推断
func Overview(pd *model.ProductData, asin string) string {
	if pd == nil {
		return "No detailed product information available"
	}
	if pd.Synthesized != "" {
		return pd.Synthesized
	}
	if pd.Source == model.SourceScraped {
		if info := pd.Info(asin); info != "" {
			return info
		}
	}
	if pd.InferredText != "" {
		return "## Product Information (LLM Analysis)\n" + pd.InferredText
	}
	return "No detailed product information available"
}

func dataQuality(pd *model.ProductData) string {
	if pd == nil || pd.Source == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(pd.Source), "_", " "))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
